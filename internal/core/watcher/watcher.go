// # internal/core/watcher/watcher.go
package watcher

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"sfclink/internal/data/files"
	"sfclink/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports batches of changed source paths under a root directory.
// Paths are slash separated and relative to the root. Writes that leave a
// file's content unchanged are dropped.
type Watcher struct {
	root       string
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	matcher    *files.Matcher
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]struct{}
	hashes    map[string][sha256.Size]byte
	pendingMu sync.Mutex
	timer     *time.Timer
}

func NewWatcher(root string, debounce time.Duration, m *files.Matcher, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || m == nil {
		return nil, os.ErrInvalid
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:      abs,
		fsWatcher: fsw,
		debounce:  debounce,
		matcher:   m,
		onChange:  onChange,
		pending:   make(map[string]struct{}),
		hashes:    make(map[string][sha256.Size]byte),
	}, nil
}

// Start registers the root recursively and begins delivering events.
func (w *Watcher) Start() error {
	if err := w.watchRecursive(w.root, false); err != nil {
		return err
	}
	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(dir string, enqueue bool) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := w.rel(path)
		if d.IsDir() {
			if w.matcher.ExcludesDir(rel) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		if w.matcher.Match(rel) {
			// Seed hashes so a later identical write is ignored.
			changed := w.rememberContent(path, rel)
			if enqueue && changed {
				w.scheduleChange(rel)
			}
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel := w.rel(event.Name)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.matcher.ExcludesDir(rel) {
				return
			}
			// Files may land before the directory is registered.
			if err := w.watchRecursive(event.Name, true); err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	removed := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !w.matcher.Match(rel) {
		// A vanished directory takes its files with it.
		if removed && !w.matcher.ExcludesDir(rel) && filepath.Ext(rel) == "" {
			w.forgetPrefix(rel)
			w.scheduleChange(rel)
		}
		return
	}

	switch {
	case removed:
		w.pendingMu.Lock()
		delete(w.hashes, rel)
		w.pendingMu.Unlock()
		w.scheduleChange(rel)
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		if w.rememberContent(event.Name, rel) {
			w.scheduleChange(rel)
		}
	}
}

// rememberContent stores the file's hash and reports whether it differs from
// the last one seen. Unreadable files count as changed.
func (w *Watcher) rememberContent(path, rel string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	sum := sha256.Sum256(data)

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if prev, ok := w.hashes[rel]; ok && prev == sum {
		return false
	}
	w.hashes[rel] = sum
	return true
}

func (w *Watcher) forgetPrefix(dir string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	for rel := range w.hashes {
		if strings.HasPrefix(rel, dir+"/") {
			delete(w.hashes, rel)
		}
	}
}

func (w *Watcher) scheduleChange(rel string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[rel] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "../"
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
