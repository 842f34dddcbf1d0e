package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Source produces screen images for the mirrored display. Grab must return
// promptly once ctx is canceled: Session.Release waits for the grab in flight.
type Source interface {
	Grab(ctx context.Context) (image.Image, error)
	Close() error
}

// ExecSource runs a screenshot command and decodes the image it writes to
// stdout, e.g. `grim -` or `import -window root png:-`.
type ExecSource struct {
	Command []string
}

func NewExecSource(command []string) (*ExecSource, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, fmt.Errorf("capture: screenshot command is empty")
	}
	return &ExecSource{Command: append([]string(nil), command...)}, nil
}

func (s *ExecSource) Grab(ctx context.Context) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", s.Command[0], err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", s.Command[0], err)
	}
	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", s.Command[0], err)
	}
	return img, nil
}

func (s *ExecSource) Close() error { return nil }

// FileSource replays image files in name order, wrapping around at the end.
type FileSource struct {
	mu    sync.Mutex
	paths []string
	next  int
}

func NewFileSource(pattern string) (*FileSource, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("capture: bad pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		// a plain path that does not exist should say so
		if _, err := os.Stat(pattern); err != nil {
			return nil, fmt.Errorf("capture: no images match %q", pattern)
		}
		paths = []string{pattern}
	}
	sort.Strings(paths)
	return &FileSource{paths: paths}, nil
}

func (s *FileSource) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	path := s.paths[s.next]
	s.next = (s.next + 1) % len(s.paths)
	s.mu.Unlock()

	type decoded struct {
		img image.Image
		err error
	}
	ch := make(chan decoded, 1)
	go func() {
		img, err := DecodeFile(path)
		ch <- decoded{img, err}
	}()
	select {
	case d := <-ch:
		return d.img, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *FileSource) Close() error { return nil }

// DecodeFile decodes a png, jpeg, bmp, tiff or webp image from disk.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
