package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type passResult struct {
	text string
	err  error
}

// fakeRecognizer answers by language set and records the order of calls.
type fakeRecognizer struct {
	mu      sync.Mutex
	results map[string]passResult
	calls   []string
	active  int
	maxSeen int
	block   chan struct{}
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(ctx context.Context, in Input) (string, error) {
	lang := strings.Join(in.Languages, "+")
	f.mu.Lock()
	f.calls = append(f.calls, lang)
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	r := f.results[lang]
	return r.text, r.err
}

func (f *fakeRecognizer) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func bitmap() *image.RGBA { return image.NewRGBA(image.Rect(0, 0, 4, 4)) }

func TestRecognizeFallbackChain(t *testing.T) {
	boom := errors.New("engine exploded")
	tests := []struct {
		name    string
		results map[string]passResult
		want    RecognizedText
		calls   []string
	}{
		{
			name:    "primary hit",
			results: map[string]passResult{"chi_sim": {text: " 你好：世界 \n"}},
			want:    RecognizedText{Text: " 你好：世界 \n", Pass: PassPrimary, Chars: 8, Recognizer: "fake"},
			calls:   []string{"chi_sim"},
		},
		{
			name:    "primary empty",
			results: map[string]passResult{"chi_sim": {text: "  "}, "eng": {text: "Alice: hi\n"}},
			want:    RecognizedText{Text: "Alice: hi\n", Pass: PassFallback, Chars: 10, Recognizer: "fake"},
			calls:   []string{"chi_sim", "eng"},
		},
		{
			name:    "primary error",
			results: map[string]passResult{"chi_sim": {err: boom}, "eng": {text: "hello"}},
			want:    RecognizedText{Text: "hello", Pass: PassFallback, Chars: 5, Recognizer: "fake"},
			calls:   []string{"chi_sim", "eng"},
		},
		{
			name:    "fallback blank",
			results: map[string]passResult{"eng": {text: " \n"}},
			want:    RecognizedText{Text: " \n", Pass: PassFallback, Chars: 2, Recognizer: "fake"},
			calls:   []string{"chi_sim", "eng"},
		},
		{
			name:    "fallback empty",
			results: map[string]passResult{},
			want:    RecognizedText{Pass: PassFallback, Recognizer: "fake"},
			calls:   []string{"chi_sim", "eng"},
		},
		{
			name:    "both fail",
			results: map[string]passResult{"chi_sim": {err: boom}, "eng": {err: boom}},
			want:    RecognizedText{Pass: PassFallback, Recognizer: "fake"},
			calls:   []string{"chi_sim", "eng"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecognizer{results: tt.results}
			e, err := NewEngine(rec, nil)
			require.NoError(t, err)

			got, err := e.Recognize(context.Background(), bitmap())
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.calls, rec.callLog())
			require.Equal(t, 1, rec.maxSeen)
		})
	}
}

func TestRecognizeHonorsPriorityList(t *testing.T) {
	rec := &fakeRecognizer{results: map[string]passResult{"jpn": {text: "こんにちは"}}}
	e, err := NewEngine(rec, []PassSpec{
		{Languages: []string{"chi_sim", "chi_tra"}},
		{Languages: []string{"eng"}},
		{Languages: []string{"jpn"}},
	})
	require.NoError(t, err)

	got, err := e.Recognize(context.Background(), bitmap())
	require.NoError(t, err)
	require.Equal(t, PassFallback, got.Pass)
	require.Equal(t, "こんにちは", got.Text)
	require.Equal(t, []string{"chi_sim+chi_tra", "eng", "jpn"}, rec.callLog())
}

func TestRecognizeCancelStopsFurtherPasses(t *testing.T) {
	rec := &fakeRecognizer{block: make(chan struct{})}
	e, err := NewEngine(rec, nil)
	require.NoError(t, err)

	job := e.Start(context.Background(), bitmap())
	require.Eventually(t, func() bool { return len(rec.callLog()) == 1 }, time.Second, time.Millisecond)

	job.Cancel()
	_, err = job.Wait()
	require.ErrorIs(t, err, context.Canceled)

	close(rec.block)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, []string{"chi_sim"}, rec.callLog())
}

func TestRecognizeWithCanceledContext(t *testing.T) {
	rec := &fakeRecognizer{}
	e, err := NewEngine(rec, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Recognize(ctx, bitmap())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, rec.callLog())
}

func TestJobCompletesOnce(t *testing.T) {
	rec := &fakeRecognizer{results: map[string]passResult{"chi_sim": {text: "ok"}}}
	e, err := NewEngine(rec, nil)
	require.NoError(t, err)

	job := e.Start(context.Background(), bitmap())
	<-job.Done()
	first, err := job.Wait()
	require.NoError(t, err)
	second, err := job.Wait()
	require.NoError(t, err)
	require.Equal(t, first, second)
	job.Cancel()
}

func TestNewEngineRequiresRecognizer(t *testing.T) {
	_, err := NewEngine(nil, nil)
	require.Error(t, err)
}

func TestSinglePassTagsPrimary(t *testing.T) {
	rec := &fakeRecognizer{results: map[string]passResult{}}
	e, err := NewEngine(rec, []PassSpec{{Languages: []string{"eng"}}})
	require.NoError(t, err)

	got, err := e.Recognize(context.Background(), bitmap())
	require.NoError(t, err)
	require.Equal(t, PassPrimary, got.Pass)
	require.True(t, got.Empty())
	require.Equal(t, []string{"eng"}, rec.callLog())
}

func TestBlankTextIsEmpty(t *testing.T) {
	require.True(t, RecognizedText{Text: " \n\t"}.Empty())
	require.False(t, RecognizedText{Text: "\nhi\n"}.Empty())
}
