// Package logging provides the structured logger used across the service,
// backed by zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Output     string `json:"output"`      // "stdout", "stderr", or file path
	JSONFormat bool   `json:"json_format"` // JSON lines instead of console output
}

// Logger is a thin wrapper around zerolog carrying the component name.
type Logger struct {
	zl zerolog.Logger
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// ParseLevel converts a level string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger from config.
func New(cfg Config) *Logger {
	var out io.Writer = os.Stdout
	switch cfg.Output {
	case "", "stdout":
	case "stderr":
		out = os.Stderr
	default:
		if f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	if !cfg.JSONFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewWithWriter creates a logger writing to w; used by tests.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// SetDefault installs the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the process-wide logger, creating a console one on first
// use.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(Config{Level: "info"})
	}
	return defaultLogger
}

// WithComponent returns a logger tagged with a component field.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// With returns a logger with an extra string field attached.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }
