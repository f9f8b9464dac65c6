package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	meshbot "github.com/hupe1980/meshbot"
	"github.com/hupe1980/meshbot/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant: channels, heartbeats and the agent loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			bot, err := meshbot.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return bot.Run(ctx)
		},
	}
}
