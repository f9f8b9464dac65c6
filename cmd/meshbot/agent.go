package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	meshbot "github.com/hupe1980/meshbot"
	"github.com/hupe1980/meshbot/config"
)

func newAgentCmd() *cobra.Command {
	var chatID string

	cmd := &cobra.Command{
		Use:   "agent [message]",
		Short: "Send one message to the assistant and print the reply",
		Args:  cobra.MinimumNArgs(1),
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

			reply, err := bot.ProcessDirect(cmd.Context(), chatID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&chatID, "chat", "default", "chat id for the direct session")
	return cmd
}
