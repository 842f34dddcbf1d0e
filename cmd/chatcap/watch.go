package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/chatcap/internal/pipeline"
)

func watchCmd() *cobra.Command {
	var from, grant string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Capture on a timer until interrupted",
		Args:  cobra.NoArgs,
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

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := p.Start(ctx, token); err != nil {
				return explainStart(err)
			}
			defer p.Stop()

			if interval <= 0 {
				interval = cfg.Capture.Interval.Duration
			}
			fmt.Fprintf(os.Stderr, "Capturing every %s into %s (Ctrl-C to stop)\n", interval, cfg.DocumentsDir)

			saved := 0
			err = p.Run(ctx, interval, func(res pipeline.Result, err error) {
				if err != nil {
					return
				}
				printResult(res)
				if !res.Empty() {
					saved++
				}
			})
			fmt.Fprintf(os.Stderr, "Stopped. %d documents saved.\n", saved)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Read frames from image files matching this glob")
	cmd.Flags().StringVar(&grant, "grant", "", "Grant token (default: the minted grant)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between captures (default capture.interval)")

	return cmd
}
