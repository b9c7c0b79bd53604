package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sys/unix"
)

// FileLock is a cross-process mutual exclusion primitive backed by flock on
// a sidecar file next to the segment. It serializes load-modify-flush cycles
// between processes; the store's in-process mutex cannot do that because it
// is not shared across process boundaries.
//
// flock state is per open file description, so one FileLock value must not
// be shared between goroutines that lock independently; give each its own.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock opens (creating if needed) the lock file at path. The caller
// that created the segment typically passes LockPath(name) and hands the
// lock to child processes before they need synchronized access.
func NewFileLock(path string) (*FileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	return &FileLock{path: path, file: file}, nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Lock acquires the lock, blocking without bound until the current holder
// releases it. A crashed holder releases implicitly when its descriptors
// close; a live holder that never unlocks starves everyone else.
func (l *FileLock) Lock() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("flock %s: %w", l.path, err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking and reports whether
// it succeeded.
func (l *FileLock) TryLock() (bool, error) {
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) {
		return false, nil
	}
	return false, fmt.Errorf("flock %s: %w", l.path, err)
}

// LockContext is the bounded-wait variant of Lock: it polls TryLock with
// Fibonacci backoff until the lock is acquired or ctx is done.
func (l *FileLock) LockContext(ctx context.Context) error {
	b := retry.NewFibonacci(5 * time.Millisecond)
	return retry.Do(ctx, b, func(ctx context.Context) error {
		ok, err := l.TryLock()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(fmt.Errorf("lock %s held elsewhere", l.path))
		}
		return nil
	})
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("funlock %s: %w", l.path, err)
	}
	return nil
}

// Close releases the underlying descriptor, dropping the lock if held.
func (l *FileLock) Close() error {
	return l.file.Close()
}
