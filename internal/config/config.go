package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DocumentsDir   string `toml:"documents_dir"`
	ScreenshotsDir string `toml:"screenshots_dir"` // empty disables screenshot archiving
	ExportDir      string `toml:"export_dir"`
	DBPath         string `toml:"db_path"`
	GrantPath      string `toml:"grant_path"`
	LogLevel       string `toml:"log_level"`

	Capture Capture `toml:"capture"`
	OCR     OCR     `toml:"ocr"`

	// path the overlay was read from, "" if defaults only
	Path string `toml:"-"`
}

type Capture struct {
	// Command prints one encoded screenshot (png/jpeg/bmp/tiff/webp) to stdout.
	Command []string `toml:"command"`
	// Width/Height of the mirrored display; zero probes the first frame.
	Width         int      `toml:"width"`
	Height        int      `toml:"height"`
	DPI           int      `toml:"dpi"`
	FrameInterval Duration `toml:"frame_interval"`
	Interval      Duration `toml:"interval"`
	Wait          Duration `toml:"wait"`
}

type OCR struct {
	// Passes in priority order; each entry is a "+"-joined tesseract language set.
	Passes []string `toml:"passes"`
	DPI    int      `toml:"dpi"`
	PSM    int      `toml:"psm"`
}

// Duration decodes TOML strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultPath is ~/.config/chatcap/config.toml unless CHATCAP_CONFIG is set.
func DefaultPath() (string, error) {
	if p := os.Getenv("CHATCAP_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chatcap", "config.toml"), nil
}

// Load builds the defaults and overlays cfgPath when it exists. An empty
// cfgPath means DefaultPath.
func Load(cfgPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := filepath.Join(home, ".local", "share", "chatcap")
	cfg := &Config{
		DocumentsDir: filepath.Join(dataDir, "documents"),
		ExportDir:    filepath.Join(home, "Downloads"),
		DBPath:       filepath.Join(home, ".config", "chatcap", "chatcap.db"),
		GrantPath:    filepath.Join(home, ".config", "chatcap", "grant"),
		LogLevel:     "info",
		Capture: Capture{
			FrameInterval: Duration{500 * time.Millisecond},
			Interval:      Duration{30 * time.Second},
			Wait:          Duration{5 * time.Second},
		},
		OCR: OCR{
			Passes: []string{"chi_sim", "eng"},
		},
	}

	if cfgPath == "" {
		cfgPath, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfgPath = expandHome(cfgPath, home)
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
		cfg.Path = cfgPath
	}

	cfg.DocumentsDir = expandHome(cfg.DocumentsDir, home)
	cfg.ScreenshotsDir = expandHome(cfg.ScreenshotsDir, home)
	cfg.ExportDir = expandHome(cfg.ExportDir, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.GrantPath = expandHome(cfg.GrantPath, home)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DocumentsDir == "" {
		return fmt.Errorf("config: documents_dir is empty")
	}
	var passes []string
	for _, p := range c.OCR.Passes {
		if p = strings.TrimSpace(p); p != "" {
			passes = append(passes, p)
		}
	}
	if len(passes) == 0 {
		return fmt.Errorf("config: ocr.passes must name at least one language set")
	}
	c.OCR.Passes = passes
	if c.Capture.FrameInterval.Duration <= 0 {
		return fmt.Errorf("config: capture.frame_interval must be positive")
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 || c.Capture.DPI < 0 {
		return fmt.Errorf("config: capture dimensions must not be negative")
	}
	return nil
}

// PassLanguages splits each configured pass into tesseract language codes.
func (c *Config) PassLanguages() [][]string {
	out := make([][]string, 0, len(c.OCR.Passes))
	for _, p := range c.OCR.Passes {
		var langs []string
		for _, l := range strings.Split(p, "+") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
		out = append(out, langs)
	}
	return out
}

// ReadGrant returns the minted grant token, or "" when none exists.
func (c *Config) ReadGrant() (string, error) {
	data, err := os.ReadFile(c.GrantPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read grant %s: %w", c.GrantPath, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteGrant stores token with owner-only permissions.
func (c *Config) WriteGrant(token string) error {
	if err := os.MkdirAll(filepath.Dir(c.GrantPath), 0o700); err != nil {
		return fmt.Errorf("create grant dir: %w", err)
	}
	if err := os.WriteFile(c.GrantPath, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write grant %s: %w", c.GrantPath, err)
	}
	return nil
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
