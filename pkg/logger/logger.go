// Package logger provides opinionated logging capabilities for the chatrelay
// system. All loggers are *slog.Logger values so that packages depend only on
// the standard interface, while the handler behind them is chosen here.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

const componentKey = "component"

type config struct {
	level     slog.Level
	pretty    bool
	json      bool
	source    bool
	component string
	writer    io.Writer
}

// New creates a *slog.Logger. By default it writes logfmt-style text at Info
// level to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(c)
	}

	w := c.writer
	if w == nil {
		w = os.Stdout
	}

	var h slog.Handler
	switch {
	case c.json:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})

	case c.pretty:
		return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
			Prefix:          c.component,
		}))

	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})
	}

	if c.component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String(componentKey, c.component)})
	}
	return slog.New(h)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
