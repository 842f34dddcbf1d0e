package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/chatcap/internal/capture"
	"github.com/Zuo-Peng/chatcap/internal/frame"
	"github.com/Zuo-Peng/chatcap/internal/parse"
)

func recognizeCmd() *cobra.Command {
	var messages bool

	cmd := &cobra.Command{
		Use:   "recognize <image>",
		Short: "Run OCR on one image file and print the text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			img, err := capture.DecodeFile(args[0])
			if err != nil {
				return err
			}
			pix, layout := frame.FromImage(img)
			bitmap, err := frame.Decode(pix, layout)
			if err != nil {
				return err
			}

			engine, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			text, err := engine.Recognize(ctx, bitmap)
			if err != nil {
				return err
			}

			fmt.Printf("[%s %s] %d chars\n", text.Recognizer, text.Pass, text.Chars)
			if !messages {
				fmt.Println(strings.TrimRight(text.Text, "\n"))
				return nil
			}
			for i, m := range parse.Parse(text.Text, time.Now()) {
				fmt.Printf("【%d】 %s:\n%s\n\n", i+1, m.Sender, m.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&messages, "messages", false, "Print the parsed conversation instead of raw text")

	return cmd
}
