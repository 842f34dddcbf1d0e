// Package document persists extracted conversations as plain text files.
//
// Layout:
//
//	<dir>/chat_<epoch_ms>.txt
//
// Listings are recomputed from the directory on every call; nothing is cached.
package document

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Zuo-Peng/chatcap/internal/scan"
)

const (
	filePrefix = "chat_"
	fileExt    = ".txt"

	// maxNameProbes bounds how many later milliseconds Save tries when a
	// file name is already taken.
	maxNameProbes = 1000
)

var ErrNotFound = errors.New("document: not found")

// PersistenceError wraps a failed storage operation.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("document: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Record is metadata about a stored document.
type Record struct {
	Name         string
	Path         string
	Size         int64
	LastModified time.Time
}

func (r Record) FormattedDate() string { return r.LastModified.Format("2006-01-02 15:04") }

func (r Record) FormattedSize() string { return humanize.IBytes(uint64(r.Size)) }

// CapturedAt is the millisecond timestamp encoded in the file name, falling
// back to the modification time.
func (r Record) CapturedAt() time.Time {
	ms := strings.TrimSuffix(strings.TrimPrefix(r.Name, filePrefix), fileExt)
	if n, err := strconv.ParseInt(ms, 10, 64); err == nil {
		return time.UnixMilli(n)
	}
	return r.LastModified
}

type Store struct {
	dir string
	now func() time.Time

	// serializes writes into dir
	mu sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// NewStoreWithClock is NewStore with an injected clock for file names and
// extraction times.
func NewStoreWithClock(dir string, now func() time.Time) *Store {
	return &Store{dir: dir, now: now}
}

func (s *Store) Dir() string { return s.dir }

// Save formats d and writes it under a name keyed by the current millisecond.
// A zero d.ExtractedAt is set to the save time.
func (s *Store) Save(d Document) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if d.ExtractedAt.IsZero() {
		d.ExtractedAt = now
	}
	body := []byte(Format(d))

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Record{}, &PersistenceError{Op: "create dir", Path: s.dir, Err: err}
	}

	ms := now.UnixMilli()
	for probe := 0; probe < maxNameProbes; probe++ {
		path := filepath.Join(s.dir, fileName(ms+int64(probe)))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Record{}, &PersistenceError{Op: "create", Path: path, Err: err}
		}
		if _, err := f.Write(body); err != nil {
			f.Close()
			os.Remove(path)
			return Record{}, &PersistenceError{Op: "write", Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return Record{}, &PersistenceError{Op: "close", Path: path, Err: err}
		}
		info, err := os.Stat(path)
		if err != nil {
			return Record{}, &PersistenceError{Op: "stat", Path: path, Err: err}
		}
		return recordFromInfo(path, info), nil
	}
	return Record{}, &PersistenceError{Op: "create", Path: s.dir, Err: fmt.Errorf("no free name after %s", fileName(ms))}
}

func fileName(ms int64) string {
	return filePrefix + strconv.FormatInt(ms, 10) + fileExt
}

func recordFromInfo(path string, info fs.FileInfo) Record {
	return Record{Name: info.Name(), Path: path, Size: info.Size(), LastModified: info.ModTime()}
}

// List returns every stored document, newest first.
func (s *Store) List() ([]Record, error) {
	files, err := scan.Dir(s.dir, "", fileExt)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Path: s.dir, Err: err}
	}
	records := make([]Record, 0, len(files))
	for _, f := range files {
		records = append(records, Record{Name: f.Name, Path: f.Path, Size: f.Size, LastModified: f.Mtime})
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].LastModified.Equal(records[j].LastModified) {
			return records[i].LastModified.After(records[j].LastModified)
		}
		return records[i].Name > records[j].Name
	})
	return records, nil
}

func (s *Store) Count() (int, error) {
	files, err := scan.Dir(s.dir, "", fileExt)
	if err != nil {
		return 0, &PersistenceError{Op: "list", Path: s.dir, Err: err}
	}
	return len(files), nil
}

// Resolve maps a bare file name to its path in the store. Anything with a
// directory component is returned as is.
func (s *Store) Resolve(nameOrPath string) string {
	if nameOrPath == "" || strings.ContainsRune(nameOrPath, filepath.Separator) || strings.ContainsRune(nameOrPath, '/') {
		return nameOrPath
	}
	return filepath.Join(s.dir, nameOrPath)
}

// Read returns the document body, or ErrNotFound.
func (s *Store) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", &PersistenceError{Op: "read", Path: path, Err: err}
	}
	return string(data), nil
}

// Load reads and decodes a stored document.
func (s *Store) Load(path string) (Document, error) {
	body, err := s.Read(path)
	if err != nil {
		return Document{}, err
	}
	return Decode(body, time.Local)
}

// Delete removes the document. A missing file reports false with no error.
func (s *Store) Delete(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: "delete", Path: path, Err: err}
	}
	return true, nil
}

// Export copies the document byte for byte into destDir, replacing a file of
// the same name, and returns the new path.
func (s *Store) Export(path, destDir string) (string, error) {
	src, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", &PersistenceError{Op: "export", Path: path, Err: err}
	}
	defer src.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &PersistenceError{Op: "export", Path: destDir, Err: err}
	}
	dest := filepath.Join(destDir, filepath.Base(path))
	if abs(dest) == abs(path) {
		return dest, nil
	}

	tmp, err := os.CreateTemp(destDir, ".export-*")
	if err != nil {
		return "", &PersistenceError{Op: "export", Path: destDir, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &PersistenceError{Op: "export", Path: dest, Err: err}
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &PersistenceError{Op: "export", Path: dest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", &PersistenceError{Op: "export", Path: dest, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", &PersistenceError{Op: "export", Path: dest, Err: err}
	}
	return dest, nil
}

func abs(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}
