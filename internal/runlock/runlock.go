// Package runlock keeps reconciliation runs from overlapping, across goroutines and
// across processes sharing a data dir.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

var ErrBusy = errors.New("a reconciliation run is already in progress")

type Lock struct {
	mu   sync.Mutex
	file *flock.Flock
	held bool
}

func New(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &Lock{file: flock.New(filepath.Join(dataDir, "reconcile.lock"))}, nil
}

// TryAcquire returns a release func, or ErrBusy when another run holds the lock.
func (l *Lock) TryAcquire() (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, ErrBusy
	}

	ok, err := l.file.TryLock()
	if err != nil {
		return nil, fmt.Errorf("run lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	l.held = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			_ = l.file.Unlock()
			l.held = false
		})
	}, nil
}

func (l *Lock) Path() string { return l.file.Path() }
