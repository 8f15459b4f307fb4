package inference

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/samcharles93/nextword/internal/logger"
)

// DefaultDebounce is how long artifact writes must settle before a reload.
const DefaultDebounce = 500 * time.Millisecond

// Reloader is what the Watcher drives; *CachedProvider implements it.
type Reloader interface {
	Reload(ctx context.Context) (*Bundle, error)
}

// Watcher reloads the model when an artifact file changes on disk. It
// watches the parent directories so that editors and exporters that replace
// files by rename are seen too.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	reloader Reloader
	log      logger.Logger
	paths    map[string]struct{}
	debounce time.Duration
	pending  time.Time
	running  bool
	closed   bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	stats WatcherStats
}

// WatcherStats counts watcher activity.
type WatcherStats struct {
	Events    int
	Reloads   int
	Failures  int
	LastEvent string
}

func NewWatcher(paths []string, r Reloader, log logger.Logger, debounce time.Duration) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logger.Nop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		reloader: r,
		log:      log,
		paths:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.paths[abs] = struct{}{}
	}
	return w, nil
}

// Start adds the watches and runs the event loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if w.closed {
		return fmt.Errorf("watcher is stopped")
	}
	dirs := make(map[string]struct{})
	for p := range w.paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.log.Debug("watching artifacts", "dir", dir)
	}
	w.running = true
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.log.Error("closing watcher", "error", err)
	}
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := max(w.debounce/5, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, ok := w.paths[name]; !ok {
		return
	}
	w.mu.Lock()
	w.pending = time.Now()
	w.stats.Events++
	w.stats.LastEvent = event.String()
	w.mu.Unlock()
}

// flush reloads once writes have been quiet for the debounce period.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	_, err := w.reloader.Reload(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.stats.Failures++
		w.log.Warn("artifact changed but reload failed", "error", err)
		return
	}
	w.stats.Reloads++
}
