package session

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"retake/internal/config"
)

// ErrLocked reports that another process holds the session lock.
var ErrLocked = errors.New("another retake run is already active")

// RunLock holds exclusive write access to the session directory for the
// duration of a rebuild run.
type RunLock struct {
	path string
	lock *flock.Flock
}

// AcquireRunLock takes the session-directory lock without blocking.
func AcquireRunLock(cfg *config.Config) (*RunLock, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	path := filepath.Join(cfg.Paths.SessionDir, "session.lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &RunLock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release drops the lock. Safe to call on a nil lock.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
