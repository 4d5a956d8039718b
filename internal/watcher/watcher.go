// Package watcher auto-ingests documents from watched directories.
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
	"github.com/kotaehq/kotae/internal/extract"
	"go.uber.org/zap"
)

// Writes arrive in bursts (editors, partial copies); events are debounced so
// a file is ingested once per burst.
const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories and calls back on document file changes.
// Only files with extensions the extractor supports trigger callbacks.
type Watcher struct {
	onIngest func(path string)
	onRemove func(path string)
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	roots   []string
	pending map[string]*time.Timer
	started bool
	done    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for watch events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the write-burst debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher. onIngest and onRemove are called with the file path
// after a create/write burst settles or on removal.
func New(onIngest, onRemove func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		onIngest: onIngest,
		onRemove: onRemove,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
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
	w.fsw = fsw
	w.started = true
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go w.loop(ctx, fsw, done)
	return nil
}

// loop selects on its own fsw handle and done channel. Stop nils out w.fsw
// and re-Start replaces w.done, so neither field may be re-read here; the
// closed channels end the loop.
func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// New subdirectory inside a watched root: watch it and pick up
			// whatever was moved in with it.
			w.watchTree(path)
			w.ingestExisting(path)
			return
		}
		if extract.IsSupported(path) {
			w.scheduleIngest(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
		if extract.IsSupported(path) && w.onRemove != nil {
			w.logger.Debug("watched file removed", zap.String("path", path))
			w.onRemove(path)
		}
	}
}

func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.logger.Debug("watched file changed", zap.String("path", path))
		if w.onIngest != nil {
			w.onIngest(path)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// AddDirectory watches root (recursively), creating it if missing. With
// ingestExisting set, files already present are ingested as well.
func (w *Watcher) AddDirectory(root string, ingestExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)

	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return nil
	}
	for _, r := range w.roots {
		if r == abs {
			w.mu.Unlock()
			return nil
		}
	}
	w.mu.Unlock()

	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}
	if err := w.watchTree(abs); err != nil {
		return err
	}

	w.mu.Lock()
	w.roots = append(w.roots, abs)
	w.mu.Unlock()
	w.logger.Info("watching directory", zap.String("path", abs))

	if ingestExisting {
		go w.ingestExisting(abs)
	}
	return nil
}

// RemoveDirectory stops watching root. Already-ingested documents stay.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	idx := -1
	for i, r := range w.roots {
		if r == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	if w.fsw != nil {
		for _, watched := range w.fsw.WatchList() {
			if watched == abs || within(abs, watched) {
				_ = w.fsw.Remove(watched)
			}
		}
	}
	w.logger.Info("stopped watching directory", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// watchTree adds dir and its subdirectories to the fsnotify watch list.
func (w *Watcher) watchTree(dir string) error {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// ingestExisting walks dir and ingests every supported file.
func (w *Watcher) ingestExisting(dir string) {
	if w.onIngest == nil {
		return
	}
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if extract.IsSupported(path) {
			w.onIngest(path)
		}
		return nil
	})
}

// Stop releases the watcher and cancels pending debounced ingests.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	close(w.done)
	w.mu.Unlock()
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
