package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 5 * time.Millisecond

// Lock is a cross-goroutine, cross-process exclusive lock over a marker path.
// The zero value is not usable; construct with New.
type Lock struct {
	path string
	sem  chan struct{}
	fl   *flock.Flock
}

// New returns a Lock over path. The marker file and its parent directory are
// created on first acquisition; the file's content is irrelevant.
func New(path string) *Lock {
	return &Lock{
		path: path,
		sem:  make(chan struct{}, 1),
		fl:   flock.New(path),
	}
}

// Path returns the marker file path.
func (l *Lock) Path() string {
	return l.path
}

// Lock blocks until the lock is held or ctx is done.
func (l *Lock) Lock(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		<-l.sem
		return fmt.Errorf("create lock directory: %w", err)
	}
	locked, err := l.fl.TryLockContext(ctx, retryDelay)
	if err != nil || !locked {
		<-l.sem
		if err == nil {
			err = fmt.Errorf("acquire %s: lock not granted", l.path)
		}
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return nil
}

// Unlock releases the OS lock and then the in-process mutex.
func (l *Lock) Unlock() error {
	err := l.fl.Unlock()
	<-l.sem
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// With runs fn while holding the lock. The lock is released on every exit
// path, including a panic inside fn, which is re-raised after release.
func (l *Lock) With(ctx context.Context, fn func() error) (err error) {
	if err := l.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if uerr := l.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}

// Close releases the marker file descriptor.
func (l *Lock) Close() error {
	return l.fl.Close()
}
