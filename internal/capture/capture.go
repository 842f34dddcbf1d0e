// Package capture owns the mirrored display a session reads frames from.
//
// A Session runs one producer goroutine that pulls images from a Source at a
// fixed interval, scales them to the display bounds and keeps the newest two
// in a queue. AcquireFrame never blocks: it hands out the newest frame or
// reports ErrCaptureUnavailable.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/Zuo-Peng/chatcap/internal/frame"
	"github.com/Zuo-Peng/chatcap/internal/logging"
)

var (
	ErrAuthorizationDenied = errors.New("capture: authorization denied")
	ErrCaptureUnavailable  = errors.New("capture: no frame available")
	ErrSessionReleased     = errors.New("capture: session released")
	ErrSessionActive       = errors.New("capture: a session is already attached")
)

// Frame is one raw captured buffer. Ownership passes to the caller of
// AcquireFrame.
type Frame struct {
	Pix        []byte
	Layout     frame.Layout
	CapturedAt time.Time
	Seq        uint64
}

// Metrics are the bounds and density of the real display.
type Metrics struct {
	Width  int
	Height int
	DPI    int
}

// Display reports the real display's current metrics. Zero width or height
// means the bounds are taken from the first grabbed image.
type Display interface {
	Metrics(ctx context.Context) (Metrics, error)
}

type StaticDisplay Metrics

func (d StaticDisplay) Metrics(context.Context) (Metrics, error) { return Metrics(d), nil }

type Options struct {
	FrameInterval time.Duration
	Logger        logging.Logger
	Now           func() time.Time
}

type Orchestrator struct {
	open    func() (Source, error)
	display Display
	auth    Authorizer
	opts    Options

	mu     sync.Mutex
	active *Session
}

// New builds an orchestrator. open is called once per Attach; the session
// owns the returned Source until Release.
func New(open func() (Source, error), display Display, auth Authorizer, opts Options) *Orchestrator {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{open: open, display: display, auth: auth, opts: opts}
}

// Attach validates grantToken and starts mirroring the display.
func (o *Orchestrator) Attach(ctx context.Context, grantToken string) (*Session, error) {
	if err := o.auth.Authorize(grantToken); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil && !o.active.isReleased() {
		return nil, ErrSessionActive
	}

	metrics, err := o.display.Metrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: display metrics: %w", err)
	}
	src, err := o.open()
	if err != nil {
		return nil, fmt.Errorf("capture: open source: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     uuid.NewString(),
		src:    src,
		cancel: cancel,
		done:   make(chan struct{}),
		now:    o.opts.Now,
	}
	s.log = o.opts.Logger.With(logging.String("session", s.ID))

	probed := false
	if metrics.Width == 0 || metrics.Height == 0 {
		img, err := src.Grab(ctx)
		if err != nil {
			cancel()
			src.Close()
			return nil, fmt.Errorf("capture: probe display: %w", err)
		}
		b := img.Bounds()
		metrics.Width, metrics.Height = b.Dx(), b.Dy()
		s.metrics = metrics
		s.produce(img)
		probed = true
	}
	s.metrics = metrics

	go s.mirror(runCtx, o.opts.FrameInterval, probed)
	o.active = s

	s.log.Info("virtual display attached",
		logging.Int("width", metrics.Width),
		logging.Int("height", metrics.Height),
		logging.Int("dpi", metrics.DPI))
	return s, nil
}

// Session is one attached mirrored display.
type Session struct {
	ID string

	src     Source
	metrics Metrics
	queue   latestQueue
	log     logging.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	seqMu sync.Mutex
	seq   uint64

	relMu    sync.RWMutex
	released bool
}

func (s *Session) Metrics() Metrics { return s.metrics }

// AcquireFrame returns the most recent frame produced since the last call.
func (s *Session) AcquireFrame() (Frame, error) {
	if s.isReleased() {
		return Frame{}, ErrSessionReleased
	}
	f, ok := s.queue.takeLatest()
	if !ok {
		return Frame{}, ErrCaptureUnavailable
	}
	return f, nil
}

// Release stops mirroring and closes the source. Frames already acquired stay
// valid. Safe to call more than once.
func (s *Session) Release() {
	s.once.Do(func() {
		s.relMu.Lock()
		s.released = true
		s.relMu.Unlock()

		s.cancel()
		<-s.done
		s.queue.close()
		if err := s.src.Close(); err != nil {
			s.log.Warn("close source", logging.Err(err))
		}
		s.log.Info("virtual display released")
	})
}

func (s *Session) isReleased() bool {
	s.relMu.RLock()
	defer s.relMu.RUnlock()
	return s.released
}

func (s *Session) mirror(ctx context.Context, interval time.Duration, skipFirst bool) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	grab := !skipFirst
	for {
		if grab {
			img, err := s.src.Grab(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				s.log.Warn("grab frame", logging.Err(err))
			default:
				s.produce(img)
			}
		}
		grab = true
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) produce(img image.Image) {
	b := img.Bounds()
	if b.Dx() != s.metrics.Width || b.Dy() != s.metrics.Height {
		dst := image.NewRGBA(image.Rect(0, 0, s.metrics.Width, s.metrics.Height))
		draw.ApproxBiLinear.Scale(dst, dst.Rect, img, b, draw.Src, nil)
		img = dst
	}
	pix, layout := frame.FromImage(img)

	s.seqMu.Lock()
	s.seq++
	seq := s.seq
	s.seqMu.Unlock()

	s.queue.push(Frame{Pix: pix, Layout: layout, CapturedAt: s.now(), Seq: seq})
}
