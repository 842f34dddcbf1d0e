package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func captureCmd() *cobra.Command {
	var from, grant string
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the screen once and save the recognized conversation",
		Long: `Attaches to the display, waits for the first frame, recognizes its text and
saves the conversation under documents_dir. The saved path is printed on stdout.

--from replays image files (a path or glob) instead of running capture.command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			p, token, err := newPipeline(cfg, log, from, grant)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := p.Start(ctx, token); err != nil {
				return explainStart(err)
			}
			defer p.Stop()

			if wait <= 0 {
				wait = cfg.Capture.Wait.Duration
			}
			res, err := p.CaptureNext(ctx, wait)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Read frames from image files matching this glob")
	cmd.Flags().StringVar(&grant, "grant", "", "Grant token (default: the minted grant)")
	cmd.Flags().DurationVar(&wait, "wait", 0, "How long to wait for the first frame (default capture.wait)")

	return cmd
}
