package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "share", "chatcap", "documents"), cfg.DocumentsDir)
	require.Equal(t, []string{"chi_sim", "eng"}, cfg.OCR.Passes)
	require.Equal(t, 30*time.Second, cfg.Capture.Interval.Duration)
	require.Empty(t, cfg.Path)
	require.Empty(t, cfg.ScreenshotsDir)
}

func TestLoadOverlay(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "config.toml")
	body := `
documents_dir = "~/chats"
screenshots_dir = "~/shots"

[capture]
command = ["grim", "-"]
width = 1080
interval = "2m"

[ocr]
passes = ["chi_sim+chi_tra", " ", "eng"]
psm = 6
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path)
	require.Equal(t, filepath.Join(home, "chats"), cfg.DocumentsDir)
	require.Equal(t, filepath.Join(home, "shots"), cfg.ScreenshotsDir)
	require.Equal(t, []string{"grim", "-"}, cfg.Capture.Command)
	require.Equal(t, 1080, cfg.Capture.Width)
	require.Equal(t, 2*time.Minute, cfg.Capture.Interval.Duration)
	require.Equal(t, 500*time.Millisecond, cfg.Capture.FrameInterval.Duration)
	require.Equal(t, [][]string{{"chi_sim", "chi_tra"}, {"eng"}}, cfg.PassLanguages())
	require.Equal(t, 6, cfg.OCR.PSM)
}

func TestLoadRejectsEmptyPasses(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ocr]\npasses = []\n"), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "ocr.passes")
}

func TestGrantRoundTrip(t *testing.T) {
	cfg := &Config{GrantPath: filepath.Join(t.TempDir(), "sub", "grant")}

	tok, err := cfg.ReadGrant()
	require.NoError(t, err)
	require.Empty(t, tok)

	require.NoError(t, cfg.WriteGrant("abc-123"))
	tok, err = cfg.ReadGrant()
	require.NoError(t, err)
	require.Equal(t, "abc-123", tok)

	info, err := os.Stat(cfg.GrantPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
