package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LevelCritical sits above slog.LevelError for MCP_DEBUG_LEVEL=CRITICAL.
const LevelCritical = slog.LevelError + 4

// ParseLevel maps DEBUG, INFO, WARNING (or WARN), ERROR and CRITICAL to slog
// levels. Unknown names fall back to ERROR.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "CRITICAL":
		return LevelCritical
	default:
		return slog.LevelError
	}
}

// LogFileName returns the daily log file name for t.
func LogFileName(t time.Time) string {
	return fmt.Sprintf("mcp_oracle_scm_%s.log", t.Format("20060102"))
}

// NewLogger builds the process logger. Disabled logging discards everything;
// enabled logging appends slog text records to the daily file under Location.
// Nothing is ever written to stdout, which carries the protocol stream.
// The returned closer releases the log file.
func NewLogger(cfg Logging, now time.Time) (*slog.Logger, io.Closer, error) {
	if !cfg.Enabled {
		return slog.New(slog.DiscardHandler), nopCloser{}, nil
	}
	if err := os.MkdirAll(cfg.Location, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory %q: %w", cfg.Location, err)
	}
	path := filepath.Join(cfg.Location, LogFileName(now))
	// #nosec G304 -- path is built from the configured log directory.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	handler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	})
	return slog.New(handler).With("component", "mcp_oracle_scm"), file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
