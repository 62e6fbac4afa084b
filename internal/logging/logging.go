package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum level written to the log file.
	Level string
	// FilePath is the log file. Empty disables file logging.
	FilePath string
	// MaxSizeMB is the size in MB that triggers rotation.
	MaxSizeMB int
	// MaxFiles is the number of rotated files to keep.
	MaxFiles int
	// Console receives human-readable records. Nil disables it.
	Console io.Writer
	// ConsoleLevel is the minimum level written to Console.
	ConsoleLevel slog.Level
}

// DefaultConfig returns the run defaults: debug records to the rotating
// file and warnings to stderr.
func DefaultConfig() Config {
	return Config{
		Level:        "debug",
		FilePath:     DefaultLogPath(),
		MaxSizeMB:    10,
		MaxFiles:     5,
		Console:      os.Stderr,
		ConsoleLevel: slog.LevelWarn,
	}
}

// Setup builds the run logger and returns a cleanup function that
// flushes and closes the log file. When the log file cannot be opened
// the logger falls back to the console alone and the error is returned
// alongside it.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var (
		handlers []slog.Handler
		cleanup  = func() {}
		fileErr  error
	)

	if cfg.FilePath != "" {
		writer, err := openWriter(cfg)
		if err != nil {
			fileErr = err
		} else {
			handlers = append(handlers, slog.NewJSONHandler(writer, &slog.HandlerOptions{
				Level:       ParseLevel(cfg.Level),
				ReplaceAttr: replaceLevel,
			}))
			cleanup = func() {
				_ = writer.Sync()
				_ = writer.Close()
			}
		}
	}

	if cfg.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(cfg.Console, &slog.HandlerOptions{
			Level:       cfg.ConsoleLevel,
			ReplaceAttr: consoleAttr,
		}))
	}

	return slog.New(fanout(handlers)), cleanup, fileErr
}

func openWriter(cfg Config) (*RotatingWriter, error) {
	if err := EnsureLogDir(cfg.FilePath); err != nil {
		return nil, err
	}
	size, files := cfg.MaxSizeMB, cfg.MaxFiles
	if size <= 0 {
		size = 10
	}
	if files <= 0 {
		files = 5
	}
	return NewRotatingWriter(cfg.FilePath, size, files)
}

// consoleAttr drops timestamps from console output.
func consoleAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return replaceLevel(groups, a)
}

// multiHandler sends each record to every handler that enables it.
type multiHandler []slog.Handler

func fanout(handlers []slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return multiHandler(handlers)
}

func (m multiHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
