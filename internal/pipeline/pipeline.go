// Package pipeline runs one capture cycle end to end: acquire a frame, decode
// it, recognize its text, parse the conversation and persist it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Zuo-Peng/chatcap/internal/capture"
	"github.com/Zuo-Peng/chatcap/internal/document"
	"github.com/Zuo-Peng/chatcap/internal/frame"
	"github.com/Zuo-Peng/chatcap/internal/logging"
	"github.com/Zuo-Peng/chatcap/internal/ocr"
	"github.com/Zuo-Peng/chatcap/internal/parse"
)

type Kind string

const (
	KindAuthorizationDenied Kind = "authorization_denied"
	KindCaptureUnavailable  Kind = "capture_unavailable"
	KindNotStarted          Kind = "not_started"
	KindDecode              Kind = "decode"
	KindPersistence         Kind = "persistence"
	KindCanceled            Kind = "canceled"
)

// Error classifies a failed pipeline call.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a pipeline error, or "" for anything else.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Result describes one completed capture cycle.
type Result struct {
	// Record is zero when recognition produced no text.
	Record   document.Record
	Text     ocr.RecognizedText
	Messages int
	// Capture counts cycles on this pipeline, starting at 1.
	Capture  int
	Duration time.Duration
}

// Empty reports a cycle whose recognition found nothing, so nothing was saved.
func (r Result) Empty() bool { return r.Text.Empty() }

type Options struct {
	// ScreenshotsDir receives a PNG of every decoded frame; empty disables it.
	ScreenshotsDir string
	Logger         logging.Logger
	Now            func() time.Time
}

type Pipeline struct {
	orch   *capture.Orchestrator
	engine *ocr.Engine
	store  *document.Store
	opts   Options
	log    logging.Logger
	decode func([]byte, frame.Layout) (*image.RGBA, error)

	// held for a whole cycle; one cycle runs at a time
	mu   sync.Mutex
	runs int

	sessMu  sync.Mutex
	session *capture.Session
}

func New(orch *capture.Orchestrator, engine *ocr.Engine, store *document.Store, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{orch: orch, engine: engine, store: store, opts: opts, log: opts.Logger, decode: frame.Decode}
}

// Start attaches a capture session. Calling it while a session is active is a
// no-op.
func (p *Pipeline) Start(ctx context.Context, grantToken string) error {
	p.sessMu.Lock()
	defer p.sessMu.Unlock()
	if p.session != nil {
		return nil
	}

	s, err := p.orch.Attach(ctx, grantToken)
	switch {
	case errors.Is(err, capture.ErrAuthorizationDenied):
		return &Error{Kind: KindAuthorizationDenied, Err: err}
	case err != nil:
		return &Error{Kind: KindCaptureUnavailable, Err: err}
	}
	p.session = s
	p.log.Info("pipeline started", logging.String("session", s.ID))
	return nil
}

// Stop releases the capture session. Safe to call more than once and before
// Start.
func (p *Pipeline) Stop() {
	p.sessMu.Lock()
	s := p.session
	p.session = nil
	p.sessMu.Unlock()

	if s == nil {
		return
	}
	s.Release()
	p.log.Info("pipeline stopped", logging.String("session", s.ID))
}

func (p *Pipeline) current() *capture.Session {
	p.sessMu.Lock()
	defer p.sessMu.Unlock()
	return p.session
}

// CaptureNow runs one cycle on the newest available frame.
func (p *Pipeline) CaptureNow(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	s := p.current()
	if s == nil {
		return Result{}, &Error{Kind: KindNotStarted, Err: errors.New("no capture session")}
	}

	f, err := s.AcquireFrame()
	switch {
	case errors.Is(err, capture.ErrSessionReleased):
		return Result{}, &Error{Kind: KindNotStarted, Err: err}
	case err != nil:
		return Result{}, &Error{Kind: KindCaptureUnavailable, Err: err}
	}

	p.runs++
	res := Result{Capture: p.runs}
	log := p.log.With(logging.Int("capture", res.Capture), logging.Int64("frame", int64(f.Seq)))

	bitmap, err := p.decode(f.Pix, f.Layout)
	if err != nil {
		return res, &Error{Kind: KindDecode, Err: err}
	}
	if p.opts.ScreenshotsDir != "" {
		if path, err := p.archive(bitmap, f.CapturedAt); err != nil {
			log.Warn("archive screenshot", logging.Err(err))
		} else {
			log.Debug("screenshot archived", logging.String("path", path))
		}
	}

	job := p.engine.Start(ctx, bitmap)
	text, err := job.Wait()
	if err != nil {
		return res, &Error{Kind: KindCanceled, Err: err}
	}
	res.Text = text
	if text.Empty() {
		res.Duration = time.Since(started)
		log.Warn("no text recognized", logging.String("pass", string(text.Pass)))
		return res, nil
	}

	now := p.opts.Now()
	messages := parse.Parse(text.Text, now)
	rec, err := p.store.Save(document.Document{ExtractedAt: now, Messages: messages, Raw: text.Text})
	if err != nil {
		return res, &Error{Kind: KindPersistence, Err: err}
	}
	res.Record = rec
	res.Messages = len(messages)
	res.Duration = time.Since(started)

	log.Info("conversation saved",
		logging.String("file", rec.Name),
		logging.Int("messages", res.Messages),
		logging.String("pass", string(text.Pass)),
		logging.Any("took", res.Duration.Round(time.Millisecond)))
	return res, nil
}

// framePoll is how often CaptureNext looks for a first frame.
const framePoll = 20 * time.Millisecond

// CaptureNext is CaptureNow retried until a frame is available. wait bounds
// only the wait for a frame; recognition runs under ctx alone.
func (p *Pipeline) CaptureNext(ctx context.Context, wait time.Duration) (Result, error) {
	deadline := time.Now().Add(wait)
	for {
		res, err := p.CaptureNow(ctx)
		if KindOf(err) != KindCaptureUnavailable || !time.Now().Before(deadline) {
			return res, err
		}
		select {
		case <-ctx.Done():
			return Result{}, &Error{Kind: KindCanceled, Err: ctx.Err()}
		case <-time.After(framePoll):
		}
	}
}

// Run calls CaptureNow every interval until ctx ends. Failed cycles are
// logged and reported to onResult; they never stop the loop.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration, onResult func(Result, error)) error {
	if interval <= 0 {
		return fmt.Errorf("pipeline: interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		res, err := p.CaptureNow(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case KindOf(err) == KindCaptureUnavailable:
			p.log.Debug("no new frame this tick")
		case err != nil:
			p.log.Error("capture cycle failed", logging.Err(err))
		}
		if onResult != nil {
			onResult(res, err)
		}
	}
}

// archive writes the decoded frame as screenshot_<epoch_ms>.png.
func (p *Pipeline) archive(img *image.RGBA, at time.Time) (string, error) {
	if err := os.MkdirAll(p.opts.ScreenshotsDir, 0o755); err != nil {
		return "", err
	}
	data, err := frame.EncodePNG(img)
	if err != nil {
		return "", err
	}
	if at.IsZero() {
		at = p.opts.Now()
	}
	path := filepath.Join(p.opts.ScreenshotsDir, "screenshot_"+strconv.FormatInt(at.UnixMilli(), 10)+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
