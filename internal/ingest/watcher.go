package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/legal-docs/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch, recursively
	InitialScan bool          // emit files already present under the roots
	Debounce    time.Duration // coalesce bursts of writes to the same file; default 500ms
}

// Watch emits the paths of new or rewritten files with an allowed extension
// under the configured roots. Hidden files are ignored. Both channels close
// when ctx ends.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	var existing []string
	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && wanted(path) {
				existing = append(existing, path)
			}
			return nil
		})
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
	}

	events := make(chan string, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		defer func() { _ = w.Close() }()

		emit := func(p string) bool {
			select {
			case events <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range existing {
			if !emit(p) {
				return
			}
		}

		// each path is emitted once it has been quiet for cfg.Debounce
		pending := make(map[string]time.Time)
		timer := time.NewTimer(cfg.Debounce)
		timer.Stop()
		defer timer.Stop()
		rearm := func() {
			timer.Stop()
			var next time.Time
			for _, due := range pending {
				if next.IsZero() || due.Before(next) {
					next = due
				}
			}
			if !next.IsZero() {
				timer.Reset(max(time.Until(next), 0))
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !wanted(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					continue
				}
				pending[e.Name] = time.Now().Add(cfg.Debounce)
				rearm()
			case now := <-timer.C:
				var ready []string
				for p, due := range pending {
					if !due.After(now) {
						ready = append(ready, p)
						delete(pending, p)
					}
				}
				for _, p := range ready {
					if _, err := os.Stat(p); err != nil {
						continue
					}
					if !emit(p) {
						return
					}
				}
				rearm()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	logger.Info("ingest.watch.start", "roots", cfg.Roots, "debounce", cfg.Debounce)
	return events, errs, nil
}

func wanted(path string) bool {
	return !IsHidden(path) && constants.IsAllowedExt(filepath.Ext(path))
}
