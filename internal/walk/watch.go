package walk

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the tree must stay quiet before a batch of
// changes is handed to the ChangeHandler.
const DefaultDebounce = 2 * time.Second

// WatchOptions defines options for watching a tree for changes.
type WatchOptions struct {
	// Debounce delays the handler until no event arrived for this long.
	Debounce time.Duration

	// Workers bounds the folder listing used to register watches.
	Workers int

	// Logger receives watcher errors and registration failures.
	Logger *zap.Logger

	// Ignore drops events for paths it reports true for, such as files the
	// handler itself writes inside the watched tree.
	Ignore func(path string) bool
}

// ChangeHandler receives the distinct paths that changed since the previous
// call, sorted. A returned error is logged and watching continues.
type ChangeHandler func(ctx context.Context, changed []string) error

// Watch monitors every folder under root and calls handler with debounced
// batches of changed paths until ctx is done. Folders created while watching
// are registered as they appear.
//
// Watch only reports that something changed; it is up to the handler to
// rebuild whatever depends on the tree.
func Watch(ctx context.Context, root string, opts WatchOptions, handler ChangeHandler) error {
	if handler == nil {
		return fmt.Errorf("watch %s: nil handler", root)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("error watching directory %s: %w", root, err)
	}

	// Register every existing folder using a metadata-free walk.
	records, err := Walk(ctx, root, Options{Workers: opts.Workers, Logger: logger})
	if err != nil {
		return fmt.Errorf("error walking directory tree: %w", err)
	}
	for _, rec := range records {
		if !rec.IsFolder {
			continue
		}
		if err := watcher.Add(rec.Path); err != nil {
			logger.Warn("failed to watch folder", zap.String("path", rec.Path), zap.Error(err))
		}
	}
	logger.Info("watching for changes", zap.String("root", root), zap.Duration("debounce", debounce))

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if opts.Ignore != nil && opts.Ignore(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn("failed to watch new folder", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			logger.Debug("change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			pending[event.Name] = struct{}{}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			slices.Sort(changed)
			clear(pending)

			if err := handler(ctx, changed); err != nil {
				logger.Error("change handler failed", zap.Int("changed", len(changed)), zap.Error(err))
			}
		}
	}
}
