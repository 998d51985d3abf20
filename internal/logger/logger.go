// Package logger wraps log/slog behind a process-wide logger for the
// purr backend. The server, the seeder, and the dating service all log
// through L(), so every line carries the same component tag and format.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/purr4furr/purr-backend/internal/config"
)

// Format selects the handler wiring for the global logger.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds the knobs Init understands. Zero values fall back to
// text output at info level with no component tag.
type Config struct {
	Level      string
	Format     Format
	Component  string
	WithSource bool
}

var (
	mu      sync.RWMutex
	shared  *slog.Logger
	current = Config{
		Level:  "info",
		Format: FormatText,
	}
)

// InitFromConfig wires the global logger from the app's Log section.
func InitFromConfig(c *config.Config) {
	if c == nil {
		Init(nil)
		return
	}
	Init(&Config{
		Level:      c.Log.Level,
		Format:     Format(c.Log.Format),
		Component:  c.Log.Component,
		WithSource: c.Log.Source,
	})
}

// Init replaces the global logger. Calling it again reconfigures in place,
// which the tests rely on to switch formats between cases.
func Init(c *Config) {
	mu.Lock()
	defer mu.Unlock()

	if c != nil {
		current = *c
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(current.Level),
		AddSource: current.WithSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// text output gets a human-readable timestamp
			if a.Key == slog.TimeKey && current.Format == FormatText {
				return slog.String(slog.TimeKey, time.Now().Format("2006-01-02 15:04:05"))
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(string(current.Format), string(FormatJSON)) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	base := slog.New(handler)
	if current.Component != "" {
		base = base.With("component", current.Component)
	}
	shared = base
}

// L returns the global logger, initializing defaults on first use.
func L() *slog.Logger {
	mu.RLock()
	if shared != nil {
		defer mu.RUnlock()
		return shared
	}
	mu.RUnlock()

	Init(nil)

	mu.RLock()
	defer mu.RUnlock()
	return shared
}

// With creates a child logger carrying extra attributes, typically a
// request id or the acting user's id.
func With(args ...any) *slog.Logger { return L().With(args...) }

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

func parseLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
