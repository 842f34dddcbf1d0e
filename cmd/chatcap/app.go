package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Zuo-Peng/chatcap/internal/capture"
	"github.com/Zuo-Peng/chatcap/internal/config"
	"github.com/Zuo-Peng/chatcap/internal/document"
	"github.com/Zuo-Peng/chatcap/internal/index"
	"github.com/Zuo-Peng/chatcap/internal/logging"
	"github.com/Zuo-Peng/chatcap/internal/ocr"
	"github.com/Zuo-Peng/chatcap/internal/ocr/tesseract"
	"github.com/Zuo-Peng/chatcap/internal/pipeline"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(os.Stderr, logging.ParseLevel(level))
}

func openStore(cfg *config.Config) *document.Store {
	return document.NewStore(cfg.DocumentsDir)
}

// openIndex opens the search index and syncs it with the documents directory.
func openIndex(cfg *config.Config, store *document.Store, log logging.Logger) (*index.DB, error) {
	db, err := index.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if _, err := index.IndexAll(db, store, log); err != nil {
		log.Warn("update index", logging.Err(err))
	}
	return db, nil
}

func newEngine(cfg *config.Config, log logging.Logger) (*ocr.Engine, error) {
	var passes []ocr.PassSpec
	for _, langs := range cfg.PassLanguages() {
		passes = append(passes, ocr.PassSpec{Languages: langs, Metadata: tesseract.PSM(cfg.OCR.PSM)})
	}
	dpi := cfg.OCR.DPI
	if dpi == 0 {
		dpi = cfg.Capture.DPI
	}
	return ocr.NewEngine(tesseract.New(), passes, ocr.WithDPI(dpi), ocr.WithLogger(log))
}

// newSourceOpener replays files matching from when set, otherwise runs the
// configured screenshot command.
func newSourceOpener(cfg *config.Config, from string) func() (capture.Source, error) {
	if from != "" {
		return func() (capture.Source, error) { return capture.NewFileSource(from) }
	}
	return func() (capture.Source, error) {
		src, err := capture.NewExecSource(cfg.Capture.Command)
		if err != nil {
			return nil, fmt.Errorf("%w (set capture.command in %s or pass --from)", err, cfg.Path)
		}
		return src, nil
	}
}

// newPipeline wires capture, recognition and storage from config. The
// returned token is the one to present to Start.
func newPipeline(cfg *config.Config, log logging.Logger, from, token string) (*pipeline.Pipeline, string, error) {
	minted, err := cfg.ReadGrant()
	if err != nil {
		return nil, "", err
	}
	if token == "" {
		token = minted
	}

	engine, err := newEngine(cfg, log)
	if err != nil {
		return nil, "", err
	}

	orch := capture.New(
		newSourceOpener(cfg, from),
		capture.StaticDisplay{Width: cfg.Capture.Width, Height: cfg.Capture.Height, DPI: cfg.Capture.DPI},
		capture.TokenAuthorizer{Grant: minted},
		capture.Options{FrameInterval: cfg.Capture.FrameInterval.Duration, Logger: log},
	)
	p := pipeline.New(orch, engine, openStore(cfg), pipeline.Options{
		ScreenshotsDir: cfg.ScreenshotsDir,
		Logger:         log,
	})
	return p, token, nil
}

func explainStart(err error) error {
	if pipeline.KindOf(err) == pipeline.KindAuthorizationDenied {
		return fmt.Errorf("%w (run 'chatcap grant' first or pass --grant)", err)
	}
	return err
}

func printResult(res pipeline.Result) {
	if res.Empty() {
		fmt.Fprintf(os.Stderr, "#%d no text recognized (%s pass)\n", res.Capture, res.Text.Pass)
		return
	}
	fmt.Fprintf(os.Stderr, "#%d %d messages, %d chars, %s pass, %s\n",
		res.Capture, res.Messages, res.Text.Chars, res.Text.Pass, res.Duration.Round(time.Millisecond))
	fmt.Println(res.Record.Path)
}
