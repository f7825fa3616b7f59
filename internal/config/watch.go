package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"docsearch/internal/logging"
)

// ReloadFunc is invoked with the freshly loaded config after the watched
// file changes.
type ReloadFunc func(*Config)

// Watcher hot-reloads a config file and pushes new values to registered
// callbacks. A logging-section change is applied live; every other section,
// analyzer profiles included, reaches the process only through the
// registered ReloadFuncs.
type Watcher struct {
	path string

	mu        sync.Mutex
	callbacks []ReloadFunc

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching path for changes. Call Close to stop.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// OnReload registers a callback invoked after each successful reload.
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logging.Boot("config hot-reload failed for %s: %v", w.path, err)
				continue
			}
			logging.Configure(cfg.Logging)
			w.mu.Lock()
			cbs := append([]ReloadFunc(nil), w.callbacks...)
			w.mu.Unlock()
			for _, cb := range cbs {
				cb(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Boot("config watcher error for %s: %v", w.path, err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
