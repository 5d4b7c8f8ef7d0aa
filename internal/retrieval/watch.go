package retrieval

import (
	"context"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch keeps the index current until ctx is done. New directories are
// added to the watch as they appear.
func (x *Index) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := x.addDirs(watcher, x.root); err != nil {
		return err
	}
	x.logger.Debug("watching workspace", zap.Int("dirs", len(watcher.WatchList())))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			x.handleEvent(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			x.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// Start builds the index and then watches for changes, detached from the
// caller. Errors are logged.
func (x *Index) Start(ctx context.Context) {
	go func() {
		if err := x.Build(ctx); err != nil {
			x.logger.Warn("workspace index build failed", zap.Error(err))
			return
		}
		if err := x.Watch(ctx); err != nil {
			x.logger.Warn("workspace watch stopped", zap.Error(err))
		}
	}()
}

func (x *Index) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, ok := x.rel(event.Name)
	if !ok || rel == "" {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		x.Remove(rel)
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			x.Remove(rel)
			return
		}
		if info.IsDir() {
			if event.Op&fsnotify.Create != 0 && !x.skip(rel, true) {
				if err := x.addDirs(watcher, event.Name); err != nil {
					x.logger.Debug("watch new directory failed", zap.String("path", rel), zap.Error(err))
				}
			}
			return
		}
		x.Update(rel)
	}
}

// addDirs watches dir and every non-ignored directory below it, indexing the
// files already present in directories created after the initial build.
func (x *Index) addDirs(watcher *fsnotify.Watcher, dir string) error {
	return x.fs.Walk(dir, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		rel, ok := x.rel(p)
		if !ok {
			return nil
		}
		if !d.IsDir() {
			if dir != x.root && d.Type().IsRegular() {
				x.Update(rel)
			}
			return nil
		}
		if rel != "" && x.skip(rel, true) {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", rel, err)
		}
		return nil
	})
}
