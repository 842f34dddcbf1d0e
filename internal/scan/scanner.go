package scan

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

type FileInfo struct {
	Path  string
	Name  string
	Mtime time.Time
	Size  int64
}

// Dir lists regular files directly under dir whose names start with prefix
// and end with ext. A missing dir yields no files and no error.
func Dir(dir, prefix, ext string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || filepath.Ext(name) != ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, FileInfo{
			Path:  filepath.Join(dir, name),
			Name:  name,
			Mtime: info.ModTime(),
			Size:  info.Size(),
		})
	}
	return files, nil
}
