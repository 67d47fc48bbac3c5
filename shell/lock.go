package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("lock is held by another process")

const lockRetryDelay = 250 * time.Millisecond

// FileLock is an advisory lock on a file. With a zero wait, Lock fails
// immediately when another process holds it.
type FileLock struct {
	path string
	wait time.Duration
}

func NewFileLock(path string, wait time.Duration) *FileLock {
	return &FileLock{path: path, wait: wait}
}

func (this *FileLock) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(this.path), 0755); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	lock := flock.New(this.path)
	locked, err := this.acquire(ctx, lock)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, this.path)
	}
	return lock.Unlock, nil
}

func (this *FileLock) acquire(ctx context.Context, lock *flock.Flock) (bool, error) {
	if this.wait <= 0 {
		return lock.TryLock()
	}
	ctx, cancel := context.WithTimeout(ctx, this.wait)
	defer cancel()
	return lock.TryLockContext(ctx, lockRetryDelay)
}
