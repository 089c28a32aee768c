// Package watcher watches drop directories and feeds changed files into the
// ingestion queue.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDelay coalesces the event bursts editors and copy tools emit while
// writing a file, so a file is enqueued once per save.
const debounceDelay = 400 * time.Millisecond

// Watcher watches directories and calls onEnqueue for settled file writes and
// onRemove for deletions.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onEnqueue  func(path string)
	onRemove   func(path string)
	logger     *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher over the given roots. extensions filters which files
// trigger callbacks (empty = all); recursive includes subdirectories.
func New(roots, extensions []string, recursive bool, onEnqueue, onRemove func(path string), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		onEnqueue:  onEnqueue,
		onRemove:   onRemove,
		logger:     logger,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
}

// Start begins watching. Missing roots are created. Runs until ctx is
// canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	for _, root := range w.roots {
		if err := w.watchTreeLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()

	w.logger.Info("watching drop directories",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	go w.run(ctx)
	return nil
}

// SyncExisting enqueues every matching file already present under the watched
// roots. Call after Start to pick up files dropped while the service was down.
func (w *Watcher) SyncExisting() {
	for _, root := range w.roots {
		w.syncDirectory(root)
	}
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.matches(path) {
			w.debounce(path)
		}
	case fsnotify.Remove, fsnotify.Rename:
		w.cancelDebounce(path)
		if w.matches(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// handleNewDirectory watches a directory that appeared after start and
// enqueues the files it already contains (a moved-in tree arrives whole).
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.watcher != nil {
		if w.recursive {
			_ = w.watchTreeLocked(dir)
		} else {
			_ = w.watcher.Add(dir)
		}
	}
	w.mu.Unlock()
	w.syncDirectory(dir)
}

func (w *Watcher) watchTreeLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if !w.recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) syncDirectory(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.matches(path) && w.onEnqueue != nil {
			w.onEnqueue(path)
		}
		return nil
	})
}

func (w *Watcher) underRoot(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range w.roots {
		rootClean := filepath.Clean(root)
		if rootClean == clean || inDir(rootClean, clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if w.onEnqueue != nil {
			w.onEnqueue(path)
		}
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}
