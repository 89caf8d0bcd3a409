package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers filesystem events from the watch tree to the intake.
// fsnotify watches are per-directory, so the watcher registers every
// existing directory up front and adds new directories as they appear.
type Watcher struct {
	root    string
	intake  *Intake
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a recursive watcher over the watch root.
func NewWatcher(root string, intake *Intake, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{root: root, intake: intake, logger: logger, watcher: fw}
	if err := w.watchTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("watch registration error", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run consumes events until the context is canceled. Create and Write events
// on files become intake candidates; Create events on directories extend the
// watch set and trigger a sub-scan, since files may land before the watch is
// in place.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	if info.IsDir() {
		if !event.Op.Has(fsnotify.Create) {
			return
		}
		if err := w.watchTree(event.Name); err != nil {
			w.logger.Warn("extending watch to new directory",
				slog.String("path", event.Name), slog.Any("error", err))
			return
		}
		// Pick up anything written before the watch existed.
		w.rescan(event.Name)
		return
	}

	w.intake.Candidate(event.Name)
}

func (w *Watcher) rescan(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		w.intake.Candidate(path)
		return nil
	})
}
