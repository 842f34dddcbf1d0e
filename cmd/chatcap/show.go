package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/chatcap/internal/document"
	"github.com/Zuo-Peng/chatcap/internal/render"
)

func showCmd() *cobra.Command {
	var message int
	var query string
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <document>",
		Short: "Print a saved conversation",
		Long:  `Prints a document by file name (looked up in documents_dir) or path.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := openStore(cfg)
			path := store.Resolve(args[0])

			body, err := store.Read(path)
			if err != nil {
				return err
			}
			if raw {
				fmt.Print(body)
				return nil
			}

			doc, err := document.Decode(body, time.Local)
			if err != nil {
				doc = document.Document{Raw: body}
				if info, statErr := os.Stat(path); statErr == nil {
					doc.ExtractedAt = info.ModTime()
				}
			}

			width := 0
			if term.IsTerminal(int(os.Stdout.Fd())) {
				if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
					width = w
				}
			}
			out, _ := render.Document(args[0], doc, render.Options{
				Width:      width,
				Query:      query,
				HitMessage: message - 1,
			})
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&message, "message", 0, "Message number to mark (1-based)")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the stored text unchanged")

	return cmd
}
