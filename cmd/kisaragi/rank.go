package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/kisaragi/internal/config"
	"github.com/zulandar/kisaragi/internal/db"
	"github.com/zulandar/kisaragi/internal/rank"
)

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Inspect the XP ledger",
	}

	cmd.AddCommand(newRankTopCmd())
	return cmd
}

func newRankTopCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the XP leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRankTop(cmd, configPath, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "kisaragi.yaml", "path to Kisaragi config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", rank.DefaultLeaderboardLimit, "number of entries to show")
	return cmd
}

func runRankTop(cmd *cobra.Command, configPath string, limit int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rankDB, err := db.Connect(cfg.Stores.Driver, cfg.Stores.Ranks)
	if err != nil {
		return fmt.Errorf("connect ranks store: %w", err)
	}
	defer closeStore(rankDB, "ranks")
	if err := db.MigrateRanks(rankDB); err != nil {
		return err
	}

	ledger, err := rank.NewLedger(rankDB)
	if err != nil {
		return err
	}

	entries, err := ledger.Leaderboard(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No ranked users yet.")
		return nil
	}

	for i, e := range entries {
		fmt.Fprintf(out, "%2d. %s — Level %d, %d/%d XP\n",
			i+1, e.Username, e.Level, e.XP, rank.LevelThreshold)
	}
	return nil
}
