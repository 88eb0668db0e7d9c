package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/kisaragi/internal/config"
	"github.com/zulandar/kisaragi/internal/dashboard"
	"github.com/zulandar/kisaragi/internal/db"
	"github.com/zulandar/kisaragi/internal/history"
	"github.com/zulandar/kisaragi/internal/llm"
	"github.com/zulandar/kisaragi/internal/rank"
	"github.com/zulandar/kisaragi/internal/relay"
	discordadapter "github.com/zulandar/kisaragi/internal/relay/discord"
	slackadapter "github.com/zulandar/kisaragi/internal/relay/slack"
)

func newBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage the Kisaragi bot",
	}

	cmd.AddCommand(newBotStartCmd())
	return cmd
}

func newBotStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Kisaragi bot daemon",
		Long:  "Connects to the configured chat platform, relays messages to Ollama, and tracks XP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBotStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "kisaragi.yaml", "path to Kisaragi config file")
	return cmd
}

func runBotStart(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Platform == "" {
		return fmt.Errorf("bot: no platform configured in %s (add platform: discord or slack)", configPath)
	}

	convDB, err := db.Connect(cfg.Stores.Driver, cfg.Stores.Conversations)
	if err != nil {
		return fmt.Errorf("connect conversations store: %w", err)
	}
	defer closeStore(convDB, "conversations")
	if err := db.MigrateConversations(convDB); err != nil {
		return err
	}
	rankDB, err := db.Connect(cfg.Stores.Driver, cfg.Stores.Ranks)
	if err != nil {
		return fmt.Errorf("connect ranks store: %w", err)
	}
	defer closeStore(rankDB, "ranks")
	if err := db.MigrateRanks(rankDB); err != nil {
		return err
	}

	store, err := history.NewStore(convDB)
	if err != nil {
		return err
	}
	ledger, err := rank.NewLedger(rankDB)
	if err != nil {
		return err
	}

	backend, err := llm.NewClient(llm.ClientOpts{
		Host:    cfg.Ollama.Host,
		Timeout: cfg.OllamaTimeout(),
	})
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	daemon, err := relay.NewDaemon(relay.DaemonOpts{
		Config:  cfg,
		Adapter: adapter,
		Ledger:  ledger,
		History: store,
		Backend: backend,
		Out:     cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				Ledger:   ledger,
				History:  store,
				Sessions: daemon.Registry(),
				Port:     cfg.Dashboard.Port,
				Out:      cmd.OutOrStdout(),
			})
			if err != nil {
				log.Printf("bot: dashboard: %v", err)
			}
		}()
	}

	return daemon.Run(ctx)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (relay.Adapter, error) {
	switch cfg.Platform {
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.Channel,
		})
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Slack.AppToken,
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.Channel,
		})
	default:
		return nil, fmt.Errorf("bot: unsupported platform %q", cfg.Platform)
	}
}
