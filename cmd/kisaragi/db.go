package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zulandar/kisaragi/internal/config"
	"github.com/zulandar/kisaragi/internal/db"
	"gorm.io/gorm"
)

// closeStore releases a store handle at shutdown, logging failures.
func closeStore(handle *gorm.DB, name string) {
	if err := db.Close(handle); err != nil {
		log.Printf("db: close %s store: %v", name, err)
	}
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Kisaragi databases",
		Long:  "Creates the conversation and rank stores and migrates their tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "kisaragi.yaml", "path to Kisaragi config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s (driver: %s)\n", configPath, cfg.Stores.Driver)

	convDB, err := db.Connect(cfg.Stores.Driver, cfg.Stores.Conversations)
	if err != nil {
		return fmt.Errorf("connect conversations store: %w", err)
	}
	defer closeStore(convDB, "conversations")
	if err := db.MigrateConversations(convDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Conversation store ready: %s\n", cfg.Stores.Conversations)

	rankDB, err := db.Connect(cfg.Stores.Driver, cfg.Stores.Ranks)
	if err != nil {
		return fmt.Errorf("connect ranks store: %w", err)
	}
	defer closeStore(rankDB, "ranks")
	if err := db.MigrateRanks(rankDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Rank store ready: %s\n", cfg.Stores.Ranks)

	fmt.Fprintln(out, "\nKisaragi databases initialized successfully.")
	return nil
}
