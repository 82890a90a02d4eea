// Package corelog sets up Rekall's structured logging: a log/slog JSON
// handler writing through a rotating lumberjack.Logger file sink, paired
// with a text handler to stderr for interactive CLI use. The teacher
// declares gopkg.in/natefinch/lumberjack.v2 in go.mod without wiring it
// up; this package gives it a real home.
package corelog

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotating file sink. Zero values fall back to
// sensible defaults (see New).
type Options struct {
	// FilePath is where rotated log files are written. Empty disables
	// the file sink entirely (stderr-only logging).
	FilePath string
	// MaxSizeMB is the size at which a log file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files retained.
	MaxBackups int
	// MaxAgeDays is the maximum age of a rotated file before deletion.
	MaxAgeDays int
	// Level sets the minimum level recorded by both handlers.
	Level slog.Level
	// Stderr is where the interactive text handler writes; defaults to
	// os.Stderr.
	Stderr io.Writer
}

// New builds the dual-sink logger: JSON records to the rotating file
// (if FilePath is set), human-readable text to stderr.
func New(opts Options) *slog.Logger {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	textHandler := slog.NewTextHandler(opts.Stderr, handlerOpts)
	if opts.FilePath == "" {
		return slog.New(textHandler)
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	maxAge := opts.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 30
	}

	fileSink := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
	jsonHandler := slog.NewJSONHandler(fileSink, handlerOpts)

	return slog.New(&fanoutHandler{handlers: []slog.Handler{jsonHandler, textHandler}})
}

// fanoutHandler duplicates every record to each wrapped handler, so a
// single *slog.Logger drives both the rotating JSON file and the
// interactive stderr stream.
type fanoutHandler struct {
	handlers []slog.Handler
}

var _ slog.Handler = (*fanoutHandler)(nil)

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range f.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &fanoutHandler{handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		out.handlers[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	out := &fanoutHandler{handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		out.handlers[i] = h.WithGroup(name)
	}
	return out
}
