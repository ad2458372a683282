// Package watcher provides directory watching with fsnotify: changed
// files are debounced and handed to an ingest callback. The record store
// is append-only, so file deletions are logged but never propagated.
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

const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories and invokes the ingest callback on file
// creation and modification.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onIngest   func(path string)
	syncSkip   func(path string) bool
	debounce   time.Duration

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	rootPaths   map[string][]string // root -> watched (sub)directories
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger // optional; when set, logs debug events
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output (directory changes, file
// events, skipped syncs).
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithSyncSkip sets a predicate consulted during directory syncs (startup
// and newly added directories). Paths for which it returns true are not
// re-ingested. Live file events always reach the ingest callback.
func WithSyncSkip(skip func(path string) bool) Option {
	return func(w *Watcher) { w.syncSkip = skip }
}

// New creates a watcher over the initial roots. extensions filters which
// files trigger ingestion (empty = all); onIngest receives the absolute
// file path.
func New(roots []string, extensions []string, recursive bool, onIngest func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		roots:       roots,
		extensions:  extensions,
		recursive:   recursive,
		onIngest:    onIngest,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		rootPaths:   make(map[string][]string),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is
// called.
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
	if w.logger != nil {
		w.logger.Debug("watcher starting",
			zap.Strings("roots", w.roots),
			zap.Strings("extensions", w.extensions),
			zap.Bool("recursive", w.recursive))
	}
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			_ = fsw.Close()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx, fsw)
	return nil
}

// run drains events until ctx is cancelled or the fsnotify watcher is
// closed. The handle is passed in so Stop can nil w.watcher without a
// race; Close makes both channels report !ok.
func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		// A created name can be a directory (new or moved in).
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.watchNewDirectory(path)
			return
		}
		if w.matchExtension(path) {
			w.debounceIngest(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		// Records are append-only; a deleted file's chunks stay stored.
		if w.matchExtension(path) && w.logger != nil {
			w.logger.Debug("watcher file removed, keeping its records", zap.String("path", path))
		}
	}
}

// watchNewDirectory adds a directory that appeared under a watched root
// and ingests the files inside it.
func (w *Watcher) watchNewDirectory(dirPath string) {
	if w.logger != nil {
		w.logger.Debug("watcher handling new directory", zap.String("path", dirPath))
	}

	w.mu.Lock()
	recursive := w.recursive
	fsw := w.watcher
	w.mu.Unlock()
	if fsw == nil {
		return
	}

	for _, dir := range collectDirs(dirPath, recursive) {
		if err := fsw.Add(dir); err != nil && w.logger != nil {
			w.logger.Debug("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
		}
	}
	w.syncDirectory(dirPath)
}

// collectDirs returns root itself, plus every subdirectory when recursive.
// Unreadable subtrees are simply left out.
func collectDirs(root string, recursive bool) []string {
	if !recursive {
		return []string{root}
	}
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if dirs == nil {
		dirs = []string{root}
	}
	return dirs
}

func (w *Watcher) underRoot(path string) bool {
	clean := filepath.Clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.roots {
		root = filepath.Clean(root)
		if root == clean || inDir(root, clean) {
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

func (w *Watcher) matchExtension(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// debounceIngest (re)arms the per-path timer; the ingest fires only after
// the path has been quiet for the debounce window.
func (w *Watcher) debounceIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.debounceMap[path]; ok {
		prev.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() { w.fireIngest(path) })
}

func (w *Watcher) fireIngest(path string) {
	w.mu.Lock()
	delete(w.debounceMap, path)
	logger := w.logger
	w.mu.Unlock()
	if logger != nil {
		logger.Debug("watcher ingesting file (debounced)", zap.String("path", path))
	}
	if w.onIngest != nil {
		w.onIngest(path)
	}
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// AddDirectory adds a root directory to watch and optionally ingests the
// files already inside it.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	if w.rootIndexLocked(filepath.Clean(abs)) >= 0 {
		return nil
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	if w.logger != nil {
		w.logger.Debug("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	}
	if syncExisting && w.onIngest != nil {
		go w.syncDirectory(abs)
	}
	return nil
}

// rootIndexLocked returns the position of the cleaned root path in
// w.roots, or -1. Callers hold w.mu.
func (w *Watcher) rootIndexLocked(clean string) int {
	for i, r := range w.roots {
		if filepath.Clean(r) == clean {
			return i
		}
	}
	return -1
}

// addRootLocked registers root (creating it if missing) and, when
// recursive, every directory below it. Callers hold w.mu.
func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(root, 0755); mkErr != nil {
			return mkErr
		}
	} else if err != nil {
		return err
	}

	dirs := []string{root}
	if w.recursive {
		dirs = dirs[:0]
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				dirs = append(dirs, path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.rootPaths[root] = dirs
	return nil
}

func (w *Watcher) syncDirectory(root string) {
	w.mu.Lock()
	exts := append([]string(nil), w.extensions...)
	onIngest := w.onIngest
	skip := w.syncSkip
	logger := w.logger
	w.mu.Unlock()
	if logger != nil {
		logger.Debug("watcher syncing directory", zap.String("root", root))
	}
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !matchExtension(path, exts) {
			return nil
		}
		if skip != nil && skip(path) {
			if logger != nil {
				logger.Debug("watcher sync skipping already ingested file", zap.String("path", path))
			}
			return nil
		}
		if logger != nil {
			logger.Debug("watcher sync ingesting file", zap.String("path", path))
		}
		if onIngest != nil {
			onIngest(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching the given root. It does not remove any
// stored records.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	idx := w.rootIndexLocked(abs)
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.watcher.Remove(p)
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	if w.logger != nil {
		w.logger.Debug("watcher directory removed", zap.String("path", abs))
	}
	return nil
}

// Directories returns a copy of the current watched root directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles ingests the files already present in each watched
// root, honoring the sync-skip predicate. Call after Start to pick up
// files that predate the watcher.
func (w *Watcher) SyncExistingFiles() {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	if w.logger != nil {
		w.logger.Debug("watcher syncing existing files", zap.Strings("roots", roots))
	}
	for _, root := range roots {
		w.syncDirectory(root)
	}
}

// Stop stops the watcher and releases resources. Safe to call more than
// once and concurrently with a running event loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw := w.watcher
	if !w.started || fsw == nil {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.watcher = nil
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	w.mu.Unlock()

	_ = fsw.Close()
	w.stopOnce.Do(func() { close(w.done) })
}
