package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func grantCmd() *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Mint the capture grant that capture and watch present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if show {
				token, err := cfg.ReadGrant()
				if err != nil {
					return err
				}
				if token == "" {
					return fmt.Errorf("no grant minted yet")
				}
				fmt.Println(token)
				return nil
			}

			token := uuid.NewString()
			if err := cfg.WriteGrant(token); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Grant written to %s\n", cfg.GrantPath)
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "Print the current grant instead of minting a new one")

	return cmd
}
