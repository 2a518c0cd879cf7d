package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the temp-write/rename burst of one atomic save into
// a single notification.
const watchDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the data directory and calls cb after
// the workspace document changes, until ctx is cancelled. Saves by this
// process and by any other process sharing the directory both fire; the SSE
// layer relies on this to notice cross-process writes.
func (s *Store) Watch(ctx context.Context, logger *slog.Logger, cb func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", s.dir))

	var debounce *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(watchDebounce)
			fire = debounce.C
		} else {
			debounce.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Atomic saves land as a rename onto the document path; ignore
			// the temp-file churn around it.
			if filepath.Base(ev.Name) != documentFile {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
