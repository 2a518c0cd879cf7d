package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rowanvale/draftforge/internal/apperr"
)

const (
	lockStaleAfter   = 30 * time.Second
	lockPollInterval = 20 * time.Millisecond
)

// dirLock is a cross-process advisory lock implemented as an exclusive
// directory create. A crashed holder leaves the directory behind; a lock
// older than staleAfter is forcibly reclaimed so the store never deadlocks
// permanently. Acquisition gives up after twice the staleness window.
type dirLock struct {
	path       string
	staleAfter time.Duration
}

func newDirLock(path string) *dirLock {
	return &dirLock{path: path, staleAfter: lockStaleAfter}
}

func (l *dirLock) acquire() error {
	started := time.Now()

	for {
		err := os.Mkdir(l.path, 0o755)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("store: acquire lock: %w", err)
		}

		if info, statErr := os.Stat(l.path); statErr == nil {
			if time.Since(info.ModTime()) > l.staleAfter {
				_ = os.RemoveAll(l.path)
				continue
			}
		}
		// The holder may have released between mkdir and stat; retry.

		if time.Since(started) > 2*l.staleAfter {
			return fmt.Errorf("store: %w: %s", apperr.ErrLockTimeout, l.path)
		}
		time.Sleep(lockPollInterval)
	}
}

func (l *dirLock) release() {
	_ = os.RemoveAll(l.path)
}
