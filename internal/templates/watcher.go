package templates

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mindmaps/internal/storage"
)

// DefaultDebounce is how long Watch waits after the last file event before
// re-syncing.
const DefaultDebounce = 200 * time.Millisecond

// ChangeCallback is called after a watcher-driven sync that changed at
// least one template.
type ChangeCallback func(Result)

// Watch re-syncs the template library whenever a YAML file under dir is
// created, written, removed or renamed, until ctx is cancelled. Bursts of
// events are collapsed into one Sync per debounce window. New directories
// are added to the watch list as they appear.
func Watch(ctx context.Context, store storage.TemplateStore, dir *Dir, debounce time.Duration, logger *slog.Logger, cb ChangeCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir.Root()); err != nil {
		return err
	}
	logger.Info("templates watcher: started", slog.String("root", dir.Root()))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("templates watcher: stopped")
			return nil

		case <-fire:
			res, err := Sync(ctx, store, dir, logger)
			if err != nil {
				logger.Warn("templates watcher: sync failed", slog.String("error", err.Error()))
				continue
			}
			if res.Changed() > 0 {
				logger.Info("templates watcher: synced",
					slog.Int("upserted", res.Upserted),
					slog.Int("removed", res.Removed))
				if cb != nil {
					cb(res)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("templates watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}
			if !isTemplateFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("templates watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
