package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/chatcap/internal/frame"
)

// chanSource hands out whatever the test sends on images.
type chanSource struct {
	images chan image.Image
	closed atomic.Bool
}

func newChanSource() *chanSource {
	return &chanSource{images: make(chan image.Image)}
}

func (s *chanSource) Grab(ctx context.Context) (image.Image, error) {
	select {
	case img := <-s.images:
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *chanSource) Close() error {
	s.closed.Store(true)
	return nil
}

// solid returns a w x h image whose red channel carries tag.
func solid(w, h int, tag uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: tag, A: 255})
		}
	}
	return img
}

func newTestOrchestrator(src Source, m Metrics) *Orchestrator {
	return New(
		func() (Source, error) { return src, nil },
		StaticDisplay(m),
		TokenAuthorizer{Grant: "grant-1"},
		Options{FrameInterval: time.Millisecond},
	)
}

func waitSeq(t *testing.T, s *Session, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.seqMu.Lock()
		defer s.seqMu.Unlock()
		return s.seq >= n
	}, 2*time.Second, time.Millisecond)
}

func TestAttachRejectsBadGrant(t *testing.T) {
	o := newTestOrchestrator(newChanSource(), Metrics{Width: 2, Height: 2})

	for _, tok := range []string{"", "  ", "nope"} {
		_, err := o.Attach(context.Background(), tok)
		require.ErrorIs(t, err, ErrAuthorizationDenied, "token %q", tok)
	}
}

func TestTokenAuthorizerWithoutGrant(t *testing.T) {
	require.NoError(t, TokenAuthorizer{}.Authorize("anything"))
	require.ErrorIs(t, TokenAuthorizer{}.Authorize(""), ErrAuthorizationDenied)
}

func TestAcquireFrameIsNonBlocking(t *testing.T) {
	src := newChanSource()
	o := newTestOrchestrator(src, Metrics{Width: 2, Height: 2})

	s, err := o.Attach(context.Background(), "grant-1")
	require.NoError(t, err)
	defer s.Release()

	start := time.Now()
	_, err = s.AcquireFrame()
	require.ErrorIs(t, err, ErrCaptureUnavailable)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquireFrameReturnsLatestOnly(t *testing.T) {
	src := newChanSource()
	o := newTestOrchestrator(src, Metrics{Width: 2, Height: 2})

	s, err := o.Attach(context.Background(), "grant-1")
	require.NoError(t, err)
	defer s.Release()

	for tag := uint8(1); tag <= 3; tag++ {
		src.images <- solid(2, 2, tag)
	}
	waitSeq(t, s, 3)

	f, err := s.AcquireFrame()
	require.NoError(t, err)
	require.Equal(t, uint64(3), f.Seq)
	require.Equal(t, frame.Layout{Width: 2, Height: 2, RowStride: 8, PixelStride: 4}, f.Layout)
	require.Equal(t, uint8(3), f.Pix[0])

	_, err = s.AcquireFrame()
	require.ErrorIs(t, err, ErrCaptureUnavailable)
}

func TestFramesAreScaledToDisplay(t *testing.T) {
	src := newChanSource()
	o := newTestOrchestrator(src, Metrics{Width: 4, Height: 2, DPI: 320})

	s, err := o.Attach(context.Background(), "grant-1")
	require.NoError(t, err)
	defer s.Release()

	src.images <- solid(8, 4, 9)
	waitSeq(t, s, 1)

	f, err := s.AcquireFrame()
	require.NoError(t, err)
	require.Equal(t, 4, f.Layout.Width)
	require.Equal(t, 2, f.Layout.Height)
	require.Equal(t, 320, s.Metrics().DPI)
}

func TestAttachProbesDisplayBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.png")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, solid(6, 3, 5)))
	require.NoError(t, out.Close())

	src, err := NewFileSource(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	o := New(func() (Source, error) { return src, nil }, StaticDisplay{DPI: 160}, TokenAuthorizer{}, Options{FrameInterval: time.Hour})

	s, err := o.Attach(context.Background(), "any")
	require.NoError(t, err)
	defer s.Release()

	require.Equal(t, Metrics{Width: 6, Height: 3, DPI: 160}, s.Metrics())
	f, err := s.AcquireFrame()
	require.NoError(t, err)
	require.Equal(t, 6, f.Layout.Width)
}

func TestReleaseIsIdempotentAndFreesOrchestrator(t *testing.T) {
	src := newChanSource()
	o := newTestOrchestrator(src, Metrics{Width: 2, Height: 2})

	s, err := o.Attach(context.Background(), "grant-1")
	require.NoError(t, err)

	_, err = o.Attach(context.Background(), "grant-1")
	require.ErrorIs(t, err, ErrSessionActive)

	src.images <- solid(2, 2, 1)
	waitSeq(t, s, 1)
	f, err := s.AcquireFrame()
	require.NoError(t, err)

	s.Release()
	s.Release()
	require.True(t, src.closed.Load())

	_, err = s.AcquireFrame()
	require.ErrorIs(t, err, ErrSessionReleased)
	// frames handed out before release are still usable
	require.Equal(t, uint8(1), f.Pix[0])

	s2, err := o.Attach(context.Background(), "grant-1")
	require.NoError(t, err)
	s2.Release()
}

func TestReleaseInterruptsPendingGrab(t *testing.T) {
	src := newChanSource()
	o := newTestOrchestrator(src, Metrics{Width: 2, Height: 2})
	s, err := o.Attach(context.Background(), "grant-1")
	require.NoError(t, err)

	// nothing is ever sent, so the mirror sits inside Grab
	released := make(chan struct{})
	go func() {
		s.Release()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("release waited on a blocked grab")
	}
	require.True(t, src.closed.Load())
}

func TestAttachFailsWhenSourceCannotOpen(t *testing.T) {
	o := New(func() (Source, error) { return nil, errors.New("no display") }, StaticDisplay{Width: 1, Height: 1}, TokenAuthorizer{}, Options{})

	_, err := o.Attach(context.Background(), "tok")
	require.ErrorContains(t, err, "no display")
}

func TestLatestQueueEvictsOldest(t *testing.T) {
	var q latestQueue
	for i := uint64(1); i <= 5; i++ {
		require.True(t, q.push(Frame{Seq: i}))
	}
	require.Equal(t, queueDepth, q.len())

	f, ok := q.takeLatest()
	require.True(t, ok)
	require.Equal(t, uint64(5), f.Seq)
	require.Equal(t, 0, q.len())

	q.close()
	require.False(t, q.push(Frame{Seq: 6}))
	_, ok = q.takeLatest()
	require.False(t, ok)
}

func TestFileSourceRoundRobin(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"b.png", "a.png"} {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, solid(1, 1, uint8(10+i))))
		require.NoError(t, f.Close())
	}

	src, err := NewFileSource(filepath.Join(dir, "*.png"))
	require.NoError(t, err)

	var got []uint8
	for i := 0; i < 3; i++ {
		img, err := src.Grab(context.Background())
		require.NoError(t, err)
		r, _, _, _ := img.At(0, 0).RGBA()
		got = append(got, uint8(r>>8))
	}
	// a.png (11) sorts before b.png (10)
	require.Equal(t, []uint8{11, 10, 11}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Grab(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, err = NewFileSource(filepath.Join(dir, "*.jpg"))
	require.Error(t, err)
}

func TestNewExecSourceRequiresCommand(t *testing.T) {
	_, err := NewExecSource(nil)
	require.Error(t, err)
}
