package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/chatcap/internal/search"
	"github.com/Zuo-Peng/chatcap/internal/tui"
)

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse saved documents, newest first",
		Long: `Opens a TUI showing every saved document, newest first. Type to filter by
message content. When stdout is not a terminal, prints TSV instead:
  name, modified, size, path`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := openStore(cfg)

			if term.IsTerminal(int(os.Stdout.Fd())) {
				db, err := openIndex(cfg, store, newLogger(cfg))
				if err != nil {
					return err
				}
				defer db.Close()

				return tui.Run(store, db, tui.Options{
					List:      true,
					Search:    search.Options{Limit: limit},
					ExportDir: cfg.ExportDir,
				})
			}

			records, err := store.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(os.Stderr, "No documents.")
				return nil
			}
			for i, r := range records {
				if limit > 0 && i >= limit {
					break
				}
				fmt.Printf("%s\t%s\t%s\t%s\n",
					r.Name,
					r.FormattedDate(),
					strings.ReplaceAll(r.FormattedSize(), " ", ""),
					r.Path,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max documents (0 = no limit)")

	return cmd
}
