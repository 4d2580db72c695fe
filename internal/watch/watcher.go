package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/logging"
)

// Watcher mirrors file changes under a root directory into a buffer store.
type Watcher struct {
	root     string
	patterns Patterns
	store    *buffer.Store
	log      *zap.Logger

	mu       sync.Mutex
	bindings Bindings

	fsw *fsnotify.Watcher
}

// New scans root, loads the bound files into store and prepares a watcher.
// Call Run to start following changes.
func New(root string, patterns Patterns, store *buffer.Store, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	bindings, err := Scan(abs, patterns)
	if err != nil {
		return nil, err
	}
	src, err := Load(bindings)
	if err != nil {
		return nil, err
	}
	store.Reset(src)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}
	w := &Watcher{
		root:     abs,
		patterns: patterns,
		store:    store,
		log:      logging.OrNop(log),
		bindings: bindings,
		fsw:      fsw,
	}
	if err := w.addRecursive(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Bindings returns a copy of the current file bindings.
func (w *Watcher) Bindings() Bindings {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(Bindings, len(w.bindings))
	for k, v := range w.bindings {
		out[k] = v
	}
	return out
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && shouldExcludeDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: adding %s: %w", path, err)
		}
		return nil
	})
}

// Run follows file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	path := filepath.Clean(ev.Name)
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.log.Warn("watching new directory", zap.String("path", path), zap.Error(err))
			}
			return
		}
	}

	lang, ok := w.bind(path)
	if !ok {
		return
	}
	content, err := ReadFile(path)
	if err != nil {
		w.log.Debug("skipping unreadable file", zap.String("path", path), zap.Error(err))
		return
	}
	changed, err := w.store.Set(lang, content)
	if err != nil {
		w.log.Warn("updating buffer", zap.String("language", string(lang)), zap.Error(err))
		return
	}
	if changed {
		w.log.Info("buffer reloaded from disk", zap.String("language", string(lang)), zap.String("path", path))
	}
}

// bind returns the buffer fed by path, claiming an unbound buffer when a
// newly created file matches its patterns.
func (w *Watcher) bind(path string) (buffer.Language, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if lang, ok := w.bindings.Language(path); ok {
		return lang, true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	for _, lang := range buffer.Languages {
		if _, bound := w.bindings[lang]; bound {
			continue
		}
		if Matches(rel, w.patterns.forLanguage(lang)) {
			w.bindings[lang] = path
			return lang, true
		}
	}
	return "", false
}
