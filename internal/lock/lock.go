// Package lock serializes servicereport runs across processes.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

// RunLock is an exclusive advisory lock held for the duration of a run.
type RunLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New returns an unlocked RunLock on path.
func New(path string) *RunLock {
	return &RunLock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. A lock held by another run
// yields ERR_205_RUN_LOCKED.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return srerrors.InternalError("failed to create lock directory", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return srerrors.InternalError(fmt.Sprintf("failed to lock %s", l.path), err)
	}
	if !acquired {
		return srerrors.New(srerrors.ErrCodeRunLocked, "another servicereport run is in progress", nil).
			WithDetail("lock", l.path).
			WithSuggestion("wait for the other run to finish")
	}
	l.locked = true
	return nil
}

// Release drops the lock. It is safe to call on an unlocked RunLock.
func (l *RunLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string { return l.path }

// Held reports whether this RunLock holds the lock.
func (l *RunLock) Held() bool { return l.locked }
