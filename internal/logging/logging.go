// Package logging owns the process-wide loggers: App for the gallery and
// daemon, Media for feed producers. Call Init once at start and Shutdown
// once at stop.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures Init.
type Config struct {
	Level slog.Level
	// Dir receives app.log and media.log; empty disables file output
	Dir string
	// MaxSizeMB per file before rotation (default 5)
	MaxSizeMB int
	// MaxBackups of app.log (default 5); media.log keeps 3
	MaxBackups int
	// Console enables a text handler
	Console bool
	// ConsoleWriter defaults to os.Stderr
	ConsoleWriter io.Writer
}

const (
	defaultMaxSizeMB       = 5
	defaultMaxBackups      = 5
	defaultMediaMaxBackups = 3
	appFile                = "app.log"
	mediaFile              = "media.log"
	mediaConsoleLevel      = slog.LevelWarn
)

// Loggers holds the named loggers and the files behind them.
type Loggers struct {
	App   *slog.Logger
	Media *slog.Logger

	files    []io.Closer
	shutdown sync.Once
}

// Init builds the loggers and installs App as slog's default.
func Init(cfg Config) (*Loggers, error) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaultMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = defaultMaxBackups
	}
	if cfg.ConsoleWriter == nil {
		cfg.ConsoleWriter = os.Stderr
	}

	l := &Loggers{}
	var appHandlers, mediaHandlers []slog.Handler

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: create dir: %w", err)
		}

		appLog := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, appFile),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		mediaLog := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, mediaFile),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: defaultMediaMaxBackups,
		}
		l.files = append(l.files, appLog, mediaLog)

		opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: true}
		appHandlers = append(appHandlers, slog.NewJSONHandler(appLog, opts))
		mediaHandlers = append(mediaHandlers, slog.NewJSONHandler(mediaLog, opts))
	}

	if cfg.Console {
		appHandlers = append(appHandlers, slog.NewTextHandler(cfg.ConsoleWriter, &slog.HandlerOptions{
			Level: cfg.Level,
		}))
		mediaHandlers = append(mediaHandlers, slog.NewTextHandler(cfg.ConsoleWriter, &slog.HandlerOptions{
			Level: max(cfg.Level, mediaConsoleLevel),
		}))
	}

	l.App = slog.New(newFanout(appHandlers...)).With("logger", "app")
	l.Media = slog.New(newFanout(mediaHandlers...)).With("logger", "media")

	slog.SetDefault(l.App)

	l.App.Debug("logging: initialized",
		"level", cfg.Level.String(),
		"dir", cfg.Dir,
		"console", cfg.Console,
	)

	return l, nil
}

// Shutdown closes the log files. Idempotent.
func (l *Loggers) Shutdown() error {
	var errs []error
	l.shutdown.Do(func() {
		l.App.Debug("logging: shutting down")
		for _, f := range l.files {
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("logging: close: %w", err)
	}
	return nil
}

// fanout sends each record to every handler enabled for its level.
type fanout struct {
	handlers []slog.Handler
}

func newFanout(handlers ...slog.Handler) slog.Handler {
	if len(handlers) == 0 {
		return slog.DiscardHandler
	}
	if len(handlers) == 1 {
		return handlers[0]
	}
	return &fanout{handlers: handlers}
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &fanout{handlers: handlers}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &fanout{handlers: handlers}
}
