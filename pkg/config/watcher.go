package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// WatchConfig initializes a filesystem watcher for the specified files and
// returns a channel that emits the path of a file after its changes have
// settled for the debounce window. Editors that save atomically (rename over
// the original) produce Create events, so those count as changes too. The
// watcher runs in a goroutine until the context is canceled.
func WatchConfig(ctx context.Context, files ...string) <-chan string {
	reloadCh := make(chan string, 1) // Buffer 1 so we don't block sender

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create fsnotify watcher", "error", err)
		return reloadCh
	}

	watched := 0
	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			slog.Warn("Could not resolve absolute path for watch file", "file", file)
			continue
		}
		if err := watcher.Add(absPath); err != nil {
			slog.Warn("Could not watch file", "file", file, "error", err)
			continue
		}
		slog.Debug("Watching configuration file", "file", file)
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return reloadCh
	}

	go func() {
		defer watcher.Close()
		defer close(reloadCh)

		var mu sync.Mutex
		timers := map[string]*time.Timer{} // debounce per file

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				name := event.Name
				mu.Lock()
				if t, exists := timers[name]; exists {
					t.Stop()
				}
				timers[name] = time.AfterFunc(reloadDebounce, func() {
					slog.Info("Configuration change detected", "file", name)
					select {
					case reloadCh <- name:
					default:
					}
				})
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Watcher encountered an error", "error", err)
			}
		}
	}()

	return reloadCh
}
