package namespace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openlocale/openlocale/internal/logging"
)

// defaultDebounce batches rapid file events (editors write multiple times)
// into a single reload.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads namespaces when their files change on disk. It watches
// every <root>/<lang>/<ns> directory of registered namespaces and debounces
// events per namespace.
type Watcher struct {
	manager  *Manager
	debounce time.Duration
	logger   *logging.Logger

	fsw    *fsnotify.Watcher
	mu     sync.Mutex
	timers map[string]*time.Timer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher creates a hot-reload watcher for the manager's namespaces.
func NewWatcher(manager *Manager) *Watcher {
	return &Watcher{
		manager:  manager,
		debounce: defaultDebounce,
		logger:   logging.GetLogger("namespace.watcher"),
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}
}

// Name implements lifecycle.Component.
func (w *Watcher) Name() string { return "Namespace Watcher" }

// Start implements lifecycle.Component. Registers every known namespace
// directory and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	for _, ns := range w.manager.Registered() {
		w.WatchNamespace(ns)
	}

	w.wg.Add(1)
	go w.loop()
	w.logger.Info("hot-reload watcher started (debounce %v)", w.debounce)
	return nil
}

// Stop implements lifecycle.Component.
func (w *Watcher) Stop(ctx context.Context) error {
	close(w.stopCh)
	if w.fsw != nil {
		_ = w.fsw.Close()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WatchNamespace adds the namespace's per-language directories to the
// watch set. Missing directories are skipped silently; they are added on
// the next registration that creates them.
func (w *Watcher) WatchNamespace(ns string) {
	if w.fsw == nil {
		return
	}
	for _, lang := range w.manager.languages {
		if !lang.Enabled {
			continue
		}
		dir := w.manager.Dir(lang.Code, ns)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch %s: %v", dir, err)
		}
	}
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isYAMLName(event.Name) {
				continue
			}
			if ns, ok := w.namespaceOf(event.Name); ok {
				w.scheduleReload(ns)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error: %v", err)
		}
	}
}

// namespaceOf maps a changed file path back to its namespace using the
// <root>/<lang>/<ns>/file layout.
func (w *Watcher) namespaceOf(path string) (string, bool) {
	rel, err := filepath.Rel(w.manager.root, path)
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return "", false
	}
	ns := parts[1]
	if !w.manager.IsRegistered(ns) {
		return "", false
	}
	return ns, true
}

func (w *Watcher) scheduleReload(ns string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[ns]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[ns] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, ns)
		w.mu.Unlock()

		w.logger.Info("file change detected, reloading namespace %s", ns)
		if err := w.manager.Reload(context.Background(), ns); err != nil {
			w.logger.ErrorWithErr("hot reload failed for namespace "+ns, err)
		}
	})
}
