package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/chatcap/internal/index"
	"github.com/Zuo-Peng/chatcap/internal/ocr/tesseract"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: config, grant, OCR, directories, DB and FTS5",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Println("=== Config ===")
			if cfg.Path == "" {
				fmt.Println("  File: none (defaults)")
			} else {
				fmt.Printf("  File: %s\n", cfg.Path)
			}
			token, err := cfg.ReadGrant()
			switch {
			case err != nil:
				fmt.Printf("  Grant: %v\n", err)
			case token == "":
				fmt.Printf("  Grant: NOT MINTED (run 'chatcap grant')\n")
			default:
				fmt.Printf("  Grant: %s (OK)\n", cfg.GrantPath)
			}

			fmt.Println("\n=== Capture ===")
			if len(cfg.Capture.Command) == 0 {
				fmt.Println("  Command: not set (use --from or set capture.command)")
			} else if _, err := exec.LookPath(cfg.Capture.Command[0]); err != nil {
				fmt.Printf("  Command: %s (NOT FOUND)\n", strings.Join(cfg.Capture.Command, " "))
			} else {
				fmt.Printf("  Command: %s (OK)\n", strings.Join(cfg.Capture.Command, " "))
			}
			if cfg.Capture.Width == 0 || cfg.Capture.Height == 0 {
				fmt.Println("  Display: probed from the first frame")
			} else {
				fmt.Printf("  Display: %dx%d @ %d dpi\n", cfg.Capture.Width, cfg.Capture.Height, cfg.Capture.DPI)
			}

			fmt.Println("\n=== OCR ===")
			fmt.Printf("  Tesseract: %s\n", tesseract.Version())
			for i, langs := range cfg.PassLanguages() {
				tag := "fallback"
				if i == 0 {
					tag = "primary"
				}
				fmt.Printf("  Pass %d (%s): %s\n", i+1, tag, strings.Join(langs, "+"))
			}

			fmt.Println("\n=== Directories ===")
			checkDir("Documents", cfg.DocumentsDir)
			if cfg.ScreenshotsDir != "" {
				checkDir("Screenshots", cfg.ScreenshotsDir)
			}
			checkDir("Export", cfg.ExportDir)
			if n, err := openStore(cfg).Count(); err != nil {
				fmt.Printf("  count error: %v\n", err)
			} else {
				fmt.Printf("  Documents: %d\n", n)
			}

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'chatcap index' first)")
				return nil
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			docCount, err := db.DocumentCount()
			if err != nil {
				return fmt.Errorf("count documents: %w", err)
			}
			msgCount, err := db.MessageCount()
			if err != nil {
				return fmt.Errorf("count messages: %w", err)
			}
			fmt.Printf("  Documents: %d\n", docCount)
			fmt.Printf("  Messages:  %d\n", msgCount)

			fmt.Println("\n=== FTS5 ===")
			var ftsCount int
			err = db.Raw().QueryRow("SELECT COUNT(*) FROM messages_fts").Scan(&ftsCount)
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == msgCount {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (messages=%d, fts=%d)\n", msgCount, ftsCount)
				}
			}

			if info, err := os.Stat(cfg.DBPath); err == nil {
				fmt.Printf("\n=== DB Size: %s ===\n", humanize.IBytes(uint64(info.Size())))
			}

			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
