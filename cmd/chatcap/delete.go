package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/chatcap/internal/index"
)

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document>...",
		Short: "Delete saved documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := openStore(cfg)

			var db *index.DB
			if _, err := os.Stat(cfg.DBPath); err == nil {
				if db, err = index.OpenDB(cfg.DBPath); err != nil {
					return err
				}
				defer db.Close()
			}

			missing := 0
			for _, arg := range args {
				path := store.Resolve(arg)
				ok, err := store.Delete(path)
				if err != nil {
					return err
				}
				if !ok {
					missing++
					fmt.Fprintf(os.Stderr, "Not found: %s\n", path)
					continue
				}
				if db != nil {
					if err := db.DeleteDocument(filepath.Base(path)); err != nil {
						fmt.Fprintf(os.Stderr, "  WARN: remove %s from index: %v\n", filepath.Base(path), err)
					}
				}
				fmt.Fprintf(os.Stderr, "Deleted %s\n", path)
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d documents not found", missing, len(args))
			}
			return nil
		},
	}
}
