// Package fileedit rewrites configuration files line by line. Every
// write is preceded by a one-time hidden backup and replaces the file
// atomically. A failed replace restores the backup.
package fileedit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/google/renameio"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

// Transform rewrites the lines of a file. It returns the new lines and
// whether anything changed.
type Transform func(lines []string) ([]string, bool)

// ReplaceFunc atomically replaces path with data.
type ReplaceFunc func(path string, data []byte, perm os.FileMode) error

// Editor applies transforms to files.
type Editor struct {
	logger  *slog.Logger
	warn    io.Writer
	replace ReplaceFunc
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the editor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWarnings sets where critical operator warnings are printed.
func WithWarnings(w io.Writer) Option {
	return func(e *Editor) {
		if w != nil {
			e.warn = w
		}
	}
}

// WithReplace overrides the atomic replace primitive.
func WithReplace(fn ReplaceFunc) Option {
	return func(e *Editor) {
		if fn != nil {
			e.replace = fn
		}
	}
}

// New returns an Editor.
func New(opts ...Option) *Editor {
	e := &Editor{
		logger:  slog.Default(),
		warn:    os.Stderr,
		replace: renameio.WriteFile,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Edit applies transform to path. A missing file is treated as empty and
// created with mode 0644. Nothing is written when transform reports no
// change.
func (e *Editor) Edit(path string, transform Transform) (bool, error) {
	original, err := os.ReadFile(path)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, srerrors.EditError(srerrors.ErrCodeEditRead, path, err)
	}

	lines, trailingNewline := splitLines(string(original))
	out, changed := transform(append([]string(nil), lines...))
	if !changed {
		return false, nil
	}

	perm := os.FileMode(0o644)
	if existed {
		info, err := os.Stat(path)
		if err != nil {
			return false, srerrors.EditError(srerrors.ErrCodeEditRead, path, err)
		}
		perm = info.Mode().Perm()
		if _, created, err := Backup(path); err != nil {
			return false, err
		} else if created {
			e.logger.Info("backup created", slog.String("path", path), slog.String("backup", BackupPath(path)))
		}
	}

	data := joinLines(out, trailingNewline || !existed || len(out) != len(lines))
	if err := e.replace(path, data, perm); err != nil {
		return false, e.rollback(path, original, existed, err)
	}

	e.logger.Info("file updated", slog.String("path", path))
	return true, nil
}

// rollback restores the backup when the replace left path altered, and
// prints a critical warning either way.
func (e *Editor) rollback(path string, original []byte, existed bool, cause error) error {
	editErr := srerrors.EditError(srerrors.ErrCodeEditReplace, path, cause)

	if existed {
		current, err := os.ReadFile(path)
		if err != nil || !bytes.Equal(current, original) {
			if rerr := e.restore(path); rerr != nil {
				editErr = srerrors.EditError(srerrors.ErrCodeEditRestore, path, rerr).
					WithSuggestion("restore " + BackupPath(path) + " manually")
			}
		}
	}

	e.logger.Error("CRITICAL: configuration file edit failed", srerrors.FormatForLog(editErr)...)
	_, _ = fmt.Fprintf(e.warn, "CRITICAL: failed to update %s: %v\n", path, cause)
	if existed {
		_, _ = fmt.Fprintf(e.warn, "CRITICAL: the original is kept at %s\n", BackupPath(path))
	}
	return editErr
}

func (e *Editor) restore(path string) error {
	backup := BackupPath(path)
	data, err := os.ReadFile(backup)
	if err != nil {
		return err
	}
	info, err := os.Stat(backup)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, info.Mode().Perm())
}

func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n"), trailing
}

func joinLines(lines []string, trailingNewline bool) []byte {
	s := strings.Join(lines, "\n")
	if trailingNewline && len(lines) > 0 {
		s += "\n"
	}
	return []byte(s)
}
