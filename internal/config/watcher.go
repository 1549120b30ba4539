package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDelay coalesces the event bursts editors produce on save.
const debounceDelay = 100 * time.Millisecond

// Watcher reloads a settings file when it changes on disk.
type Watcher struct {
	path     string
	onChange func(Settings)
	logger   *zap.Logger
}

// NewWatcher creates a watcher for the settings file at path. onChange
// receives the freshly loaded settings; a reload failure keeps the previous
// settings and logs.
func NewWatcher(path string, onChange func(Settings), logger *zap.Logger) *Watcher {
	return &Watcher{path: path, onChange: onChange, logger: logger}
}

// Run watches until ctx is cancelled. It blocks; call it in a goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory: editors replace files on save, and watching the
	// file directly loses the watch across the rename.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Name != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceDelay)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("settings watch error", zap.Error(err))

		case <-timerCh:
			timer = nil
			timerCh = nil
			s, err := Load(w.path)
			if err != nil {
				w.logger.Warn("settings reload failed, keeping previous", zap.Error(err))
				continue
			}
			w.logger.Info("settings reloaded", zap.String("path", w.path))
			w.onChange(s)
		}
	}
}
