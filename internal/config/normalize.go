package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.Compare.HighlightColor = strings.ToLower(strings.TrimSpace(c.Compare.HighlightColor))
	c.Progress.Interval = strings.TrimSpace(c.Progress.Interval)
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	c.Server.RequestTimeout = strings.TrimSpace(c.Server.RequestTimeout)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.MaxAge = strings.TrimSpace(c.Logging.MaxAge)

	if c.Logging.Dir != "" {
		dir, err := ExpandPath(strings.TrimSpace(c.Logging.Dir))
		if err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
		c.Logging.Dir = dir
	}
	return nil
}

// parseHexColor accepts #rrggbb and #rrggbbaa.
func parseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 6:
		hex += "ff"
	case 8:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: want #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
