package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/pelletier/go-toml/v2"

	"github.com/xswordsx/imgcompare"
)

//go:embed sample_config.toml
var sampleConfig string

// Compare holds the metric and override settings.
type Compare struct {
	Tolerance      float64  `toml:"tolerance" default:"16"`
	HighlightColor string   `toml:"highlight_color" default:"#ff00ff"`
	BackgroundDim  float64  `toml:"background_dim" default:"0.5"`
	SimilarAbove   float64  `toml:"similar_above" default:"80"`
	MaxPixels      int64    `toml:"max_pixels" default:"50000000"`
	Triggers       []string `toml:"triggers"`
}

// Progress shapes the advisory progress ticker.
type Progress struct {
	Interval string `toml:"interval" default:"300ms"`
	Step     int    `toml:"step" default:"10"`
	Ceiling  int    `toml:"ceiling" default:"90"`
}

// Server contains the HTTP API settings.
type Server struct {
	Bind           string `toml:"bind" default:":9090"`
	BodyLimitMB    int    `toml:"body_limit_mb" default:"20"`
	RequestTimeout string `toml:"request_timeout" default:"30s"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level" default:"info"`
	Format string `toml:"format" default:"console"`
	Dir    string `toml:"dir"`
	MaxAge string `toml:"max_age" default:"168h"`
}

// Config encapsulates all configuration values for imgcompare.
type Config struct {
	Compare  Compare  `toml:"compare"`
	Progress Progress `toml:"progress"`
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	defaults.SetDefaults(&cfg)
	cfg.Compare.Triggers = append([]string(nil), imgcompare.DefaultTriggers...)
	return cfg
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/imgcompare/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns the
// resolved path and whether a file was actually read; a missing file yields
// the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// Parse decodes TOML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Sample returns the annotated sample configuration.
func Sample() string { return sampleConfig }

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("imgcompare.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// Parameters converts the [compare] section into engine parameters.
func (c *Config) Parameters() (imgcompare.Parameters, error) {
	highlight, err := parseHexColor(c.Compare.HighlightColor)
	if err != nil {
		return imgcompare.Parameters{}, fmt.Errorf("compare.highlight_color: %w", err)
	}
	return imgcompare.Parameters{
		Tolerance:     c.Compare.Tolerance,
		Highlight:     highlight,
		BackgroundDim: c.Compare.BackgroundDim,
		SimilarAbove:  c.Compare.SimilarAbove,
		MaxPixels:     c.Compare.MaxPixels,
	}, nil
}

// Classifier builds the special-case classifier from compare.triggers.
func (c *Config) Classifier() imgcompare.LabelClassifier {
	return imgcompare.NewTriggerClassifier(c.Compare.Triggers...)
}

// Ticker converts the [progress] section.
func (c *Config) Ticker() (imgcompare.Ticker, error) {
	interval, err := time.ParseDuration(c.Progress.Interval)
	if err != nil {
		return imgcompare.Ticker{}, fmt.Errorf("progress.interval: %w", err)
	}
	return imgcompare.Ticker{
		Interval: interval,
		Step:     c.Progress.Step,
		Ceiling:  c.Progress.Ceiling,
	}, nil
}

// RequestTimeout is the server's per-comparison deadline.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LogMaxAge is how long rotated log files are kept.
func (c *Config) LogMaxAge() time.Duration {
	d, err := time.ParseDuration(c.Logging.MaxAge)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}
