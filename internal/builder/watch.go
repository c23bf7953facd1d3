package builder

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ── Watch mode ─────────────────────────────────────────────
// Keeps the collection in sync with the source tree: filesystem events
// (debounced) and an optional cron schedule both trigger a fresh build.
// Triggers coalesce; builds never overlap.

// OnSummary observes the summary of each completed rebuild.
type OnSummary func(*Summary)

// Watch runs an initial build, then rebuilds on file changes under the
// source directory and on the configured cron schedule until ctx is
// cancelled. Rebuild failures are logged and watching continues; only the
// initial build's error is returned.
func (b *Builder) Watch(ctx context.Context, onSummary OnSummary) error {
	summary, err := b.Run(ctx)
	if err != nil {
		return err
	}
	if onSummary != nil {
		onSummary(summary)
	}

	// Coalescing trigger: a pending rebuild absorbs further signals.
	trigger := make(chan string, 1)
	signal := func(cause string) {
		select {
		case trigger <- cause:
		default:
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := b.watchTree(watcher, b.cfg.SourceDir()); err != nil {
		return err
	}

	if expr := b.cfg.Build.Schedule; expr != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(expr, func() { signal("schedule") }); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		b.log.Info("schedule active", zap.String("cron", expr))
	}

	debounce := time.Duration(b.cfg.Build.WatchDebounce) * time.Millisecond
	var timer *time.Timer
	wantExt := strings.ToLower(b.cfg.RawMetadata.FileType)

	b.log.Info("watching", zap.String("directory", b.cfg.SourceDir()))
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New subdirectories join the watch set.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = b.watchTree(watcher, event.Name)
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if strings.ToLower(filepath.Ext(event.Name)) != wantExt {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			name := event.Name
			timer = time.AfterFunc(debounce, func() {
				b.log.Debug("file changed", zap.String("file", name))
				signal("file change")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.log.Warn("watcher error", zap.Error(err))

		case cause := <-trigger:
			b.log.Info("rebuilding", zap.String("cause", cause))
			summary, err := b.Run(ctx)
			if err != nil {
				b.log.Error("rebuild failed", zap.Error(err))
				continue
			}
			if onSummary != nil {
				onSummary(summary)
			}
		}
	}
}

// watchTree adds root and every directory below it to the watcher.
func (b *Builder) watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if werr := watcher.Add(path); werr != nil {
			b.log.Warn("cannot watch directory", zap.String("dir", path), zap.Error(werr))
		}
		return nil
	})
}
