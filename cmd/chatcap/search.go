package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/chatcap/internal/search"
	"github.com/Zuo-Peng/chatcap/internal/tui"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorBlue    = "\033[1;34m"
	sColorDim     = "\033[2m"
)

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func searchCmd() *cobra.Command {
	var sender, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across saved conversations",
		Long: `Search saved conversations. Latin queries use FTS5; queries containing
Chinese characters fall back to substring matching. Output is TSV for fzf
integration when stdout is not a terminal:
  name, message, extracted, sender, summary, snippet

Example shell function:
  ccf() {
    chatcap search "$*" | fzf \
      --ansi \
      --delimiter='\t' --with-nth=3.. \
      --preview 'chatcap show {1} --message {2} --query {q}' \
      --preview-window=right:60%:wrap \
      --bind 'enter:execute(chatcap open {1} --message {2})'
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := openStore(cfg)
			db, err := openIndex(cfg, store, newLogger(cfg))
			if err != nil {
				return err
			}
			defer db.Close()

			opts := search.Options{Sender: sender, Limit: limit}
			if since != "" {
				t, err := time.ParseInLocation("2006-01-02", since, time.Local)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				opts.Since = t
			}

			// Interactive TUI when stdout is a terminal; TSV output for pipes
			if term.IsTerminal(int(os.Stdout.Fd())) {
				return tui.Run(store, db, tui.Options{Query: args[0], Search: opts, ExportDir: cfg.ExportDir})
			}

			opts.Query = args[0]
			results, err := search.Search(db, opts)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, r := range results {
				who := r.Sender
				if who == "" {
					who = "-"
				}
				// first two fields stay plain for fzf {1} {2}; message is 1-based
				fmt.Printf("%s\t%d\t%s%s%s\t%s%s%s\t%s\t%s\n",
					r.DocName,
					r.MsgID+1,
					sColorDim, r.ExtractedAt.Format("2006-01-02 15:04"), sColorReset,
					sColorBlue, who, sColorReset,
					flatten(r.Summary),
					colorizeSnippet(flatten(r.Snippet)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "Only messages from this sender")
	cmd.Flags().StringVar(&since, "since", "", "Only documents extracted since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
