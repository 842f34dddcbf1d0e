package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <document> [dir]",
		Short: "Copy a document to a directory (default export_dir)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := openStore(cfg)

			dir := cfg.ExportDir
			if len(args) == 2 {
				dir = args[1]
			}
			dest, err := store.Export(store.Resolve(args[0]), dir)
			if err != nil {
				return err
			}
			fmt.Println(dest)
			return nil
		},
	}
}
