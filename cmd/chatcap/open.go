package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/chatcap/internal/open"
)

func openCmd() *cobra.Command {
	var message int

	cmd := &cobra.Command{
		Use:   "open <document>",
		Short: "Open a document in $EDITOR at a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := openStore(cfg)
			return open.Document(store, store.Resolve(args[0]), message-1)
		},
	}

	cmd.Flags().IntVar(&message, "message", 0, "Message number to jump to (1-based)")

	return cmd
}
