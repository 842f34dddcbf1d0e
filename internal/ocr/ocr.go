// Package ocr recognizes text in captured bitmaps.
//
// An Engine runs a fixed priority list of recognition passes, each tuned to a
// script family. The first pass is the primary one; when it finds nothing (or
// fails) the following passes are tried in order. Pass failures never surface
// as errors: a failed final pass yields empty text. Only cancellation of the
// caller's context is reported.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"unicode/utf8"

	"github.com/Zuo-Peng/chatcap/internal/frame"
	"github.com/Zuo-Peng/chatcap/internal/logging"
)

// Pass tags which recognition pass produced a text.
type Pass string

const (
	PassPrimary  Pass = "primary"
	PassFallback Pass = "fallback"
)

// RecognizedText is the outcome of one Engine.Recognize call.
type RecognizedText struct {
	Text string
	Pass Pass
	// Chars is the number of runes in Text.
	Chars int
	// Recognizer names the pass implementation that produced Text.
	Recognizer string
}

// Empty reports whether Text holds nothing but whitespace.
func (r RecognizedText) Empty() bool { return strings.TrimSpace(r.Text) == "" }

// Input is one image submitted to a recognizer.
type Input struct {
	// Image is PNG encoded.
	Image []byte
	// Languages are tesseract language codes, e.g. "chi_sim", "eng".
	Languages []string
	// DPI is the effective image density; zero means unknown.
	DPI int
	// Metadata passes engine specific variables through untouched.
	Metadata map[string]string
}

// Recognizer performs a single recognition pass.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, in Input) (string, error)
}

// PassSpec configures one entry of the priority list.
type PassSpec struct {
	Languages []string
	Metadata  map[string]string
}

// DefaultPasses tries simplified Chinese first and Latin second.
func DefaultPasses() []PassSpec {
	return []PassSpec{
		{Languages: []string{"chi_sim"}},
		{Languages: []string{"eng"}},
	}
}

// Engine runs a priority list of passes. The first pass is tagged primary and
// every later one fallback, so a single-pass list tags even an empty result
// primary.
type Engine struct {
	rec    Recognizer
	passes []PassSpec
	dpi    int
	log    logging.Logger
}

type Option func(*Engine)

func WithDPI(dpi int) Option { return func(e *Engine) { e.dpi = dpi } }

func WithLogger(l logging.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine builds an engine that runs rec once per pass, in order.
func NewEngine(rec Recognizer, passes []PassSpec, opts ...Option) (*Engine, error) {
	if rec == nil {
		return nil, errors.New("ocr: recognizer is nil")
	}
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	e := &Engine{rec: rec, passes: append([]PassSpec(nil), passes...), log: logging.Nop{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Recognize runs the passes sequentially. The returned error is non-nil only
// when ctx ends first; no pass starts after that.
func (e *Engine) Recognize(ctx context.Context, img *image.RGBA) (RecognizedText, error) {
	if err := ctx.Err(); err != nil {
		return RecognizedText{}, err
	}
	data, err := frame.EncodePNG(img)
	if err != nil {
		e.log.Error("encode bitmap for recognition", logging.Err(err))
		return RecognizedText{Pass: PassFallback, Recognizer: e.rec.Name()}, nil
	}

	last := len(e.passes) - 1
	for i, p := range e.passes {
		tag := PassFallback
		if i == 0 {
			tag = PassPrimary
		}
		lang := strings.Join(p.Languages, "+")

		text, err := e.runPass(ctx, Input{Image: data, Languages: p.Languages, DPI: e.dpi, Metadata: p.Metadata})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RecognizedText{}, ctxErr
		}
		blank := strings.TrimSpace(text) == ""

		switch {
		case err != nil:
			e.log.Warn("recognition pass failed", logging.String("pass", string(tag)), logging.String("lang", lang), logging.Err(err))
			if i == last {
				return e.result("", tag), nil
			}
		case !blank || i == last:
			e.log.Debug("text recognized", logging.String("pass", string(tag)), logging.String("lang", lang), logging.Int("chars", utf8.RuneCountInString(text)))
			return e.result(text, tag), nil
		default:
			e.log.Debug("pass found no text", logging.String("pass", string(tag)), logging.String("lang", lang))
		}
	}
	// unreachable: the last pass always returns
	return e.result("", PassFallback), nil
}

func (e *Engine) result(text string, pass Pass) RecognizedText {
	return RecognizedText{Text: text, Pass: pass, Chars: utf8.RuneCountInString(text), Recognizer: e.rec.Name()}
}

// runPass runs one recognizer call and abandons it when ctx ends.
func (e *Engine) runPass(ctx context.Context, in Input) (text string, err error) {
	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("recognizer panic: %v", r)}
			}
		}()
		t, err := e.rec.Recognize(ctx, in)
		ch <- outcome{t, err}
	}()
	select {
	case o := <-ch:
		return o.text, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Job is an in-flight recognition that completes exactly once.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
	res    RecognizedText
	err    error
}

// Start begins Recognize in the background.
func (e *Engine) Start(ctx context.Context, img *image.RGBA) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(j.done)
		defer cancel()
		j.res, j.err = e.Recognize(ctx, img)
	}()
	return j
}

func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job completes and returns its single result.
func (j *Job) Wait() (RecognizedText, error) {
	<-j.done
	return j.res, j.err
}

// Cancel abandons the running pass; later passes are not attempted.
func (j *Job) Cancel() { j.cancel() }
