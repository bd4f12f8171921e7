package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 150 * time.Millisecond

// Holder publishes the current manifest to concurrent readers.
type Holder struct {
	current atomic.Pointer[Manifest]
}

// NewHolder returns a holder serving m.
func NewHolder(m *Manifest) *Holder {
	h := &Holder{}
	h.current.Store(m)
	return h
}

// Get returns the current manifest.
func (h *Holder) Get() *Manifest {
	return h.current.Load()
}

// Set replaces the current manifest.
func (h *Holder) Set(m *Manifest) {
	h.current.Store(m)
}

// Watch reloads the manifest at path into h whenever the file changes, until
// ctx is done. The parent directory is watched so editors that replace the
// file by rename are picked up. A manifest that fails to load is logged and
// the previous one stays in place.
func Watch(ctx context.Context, path string, h *Holder, debounce time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve manifest path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create manifest watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("manifest watcher error", "error", err)
			case <-fire:
				fire = nil
				m, err := Load(abs)
				if err != nil {
					logger.Error("manifest reload failed, keeping previous", "path", abs, "error", err)
					continue
				}
				h.Set(m)
				logger.Info("manifest reloaded", "path", abs)
			}
		}
	}()
	return nil
}
