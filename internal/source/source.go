// Package source feeds filesystem content into the reactive graph. A Source
// owns a keyed collection of file records and keeps it current: an initial
// scan populates it, and an fsnotify watcher (activated lazily, only while
// something downstream is live) applies incremental updates. Rewrites that
// leave the content hash unchanged are suppressed before they enter the
// graph.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	builderrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/reactive"
)

// FileRecord is one content file as seen by the graph. Path is relative to
// the source root, slash-separated, and doubles as the collection key.
type FileRecord struct {
	Path    string
	Content []byte
	Hash    string
	ModTime time.Time
}

// Options configures a Source.
type Options struct {
	// Root is the directory to scan and watch.
	Root string
	// Extensions limits which files are tracked (e.g. ".md"). Empty means
	// all regular files.
	Extensions []string
	// Debounce is the quiet window for burst coalescing. Zero uses 300ms.
	Debounce time.Duration
	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// Source maintains a reactive collection of the files under a directory.
type Source struct {
	rt     *reactive.Runtime
	root   string
	exts   map[string]bool
	window time.Duration
	logger *slog.Logger
	rec    metrics.Recorder
	files  *reactive.KeyedCollection[FileRecord]

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	coal     *Coalescer
	done     chan struct{}
	degraded bool
}

// New creates a Source rooted at opts.Root. The watcher starts only when the
// collection gains its first live subscriber and stops when the last one
// goes away; until then (and after watch failure) callers drive updates via
// Scan.
func New(rt *reactive.Runtime, opts Options) (*Source, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, builderrors.WatchFailed(opts.Root, err)
	}
	if st, statErr := os.Stat(root); statErr != nil || !st.IsDir() {
		return nil, builderrors.ValidationFailed("source.contentDir", "not a directory: "+root)
	}

	s := &Source{
		rt:     rt,
		root:   root,
		window: opts.Debounce,
		logger: opts.Logger,
		rec:    opts.Recorder,
	}
	if s.window <= 0 {
		s.window = 300 * time.Millisecond
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.rec == nil {
		s.rec = metrics.NoopRecorder{}
	}
	if len(opts.Extensions) > 0 {
		s.exts = make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			s.exts[ext] = true
		}
	}

	s.files = reactive.NewKeyedCollection[FileRecord](rt, "source:"+root,
		reactive.WithItemEquals(func(a, b FileRecord) bool { return a.Hash == b.Hash }))
	s.files.BindResource(&reactive.LazyResource{
		Activate:   s.startWatcher,
		Deactivate: s.stopWatcher,
		OnError: func(err error) {
			s.mu.Lock()
			s.degraded = true
			s.mu.Unlock()
		},
	})
	return s, nil
}

// Files is the collection of tracked files, keyed by relative path.
func (s *Source) Files() *reactive.KeyedCollection[FileRecord] {
	return s.files
}

// Degraded reports whether the watcher failed to start. A degraded source
// never receives automatic updates; callers fall back to explicit Scan.
func (s *Source) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Scan walks the root and reconciles the collection with what is on disk:
// new files are added, changed files updated, vanished files removed. The
// whole reconciliation applies as one batch. Unreadable files are logged and
// skipped.
func (s *Source) Scan() error {
	seen := make(map[string]bool)
	var records []FileRecord
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scan skipping path", logfields.Path(path), logfields.Error(err))
			return nil
		}
		if d.IsDir() || !s.tracks(path) {
			return nil
		}
		rec, readErr := s.read(path)
		if readErr != nil {
			s.logger.Warn("scan skipping unreadable file", logfields.Path(path), logfields.Error(readErr))
			return nil
		}
		seen[rec.Path] = true
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return builderrors.WatchFailed(s.root, err)
	}

	s.rt.Batch(func() {
		for _, rec := range records {
			s.upsert(rec)
		}
		for _, key := range s.files.Keys() {
			if !seen[key] {
				s.removeKey(key)
			}
		}
	})
	return nil
}

// tracks reports whether path is a file the source cares about.
func (s *Source) tracks(path string) bool {
	if s.exts == nil {
		return true
	}
	return s.exts[filepath.Ext(path)]
}

func (s *Source) read(path string) (FileRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileRecord{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, err
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return FileRecord{}, err
	}
	sum := sha256.Sum256(content)
	return FileRecord{
		Path:    filepath.ToSlash(rel),
		Content: content,
		Hash:    hex.EncodeToString(sum[:]),
		ModTime: st.ModTime(),
	}, nil
}

// upsert must run inside a batch.
func (s *Source) upsert(rec FileRecord) {
	if _, ok := s.files.Get(rec.Key()); ok {
		// Hash-equal updates are suppressed by the collection's equality
		// gate, so touch-without-change never propagates.
		_ = s.files.Update(rec.Key(), rec)
		return
	}
	if err := s.files.Add(rec.Key(), rec); err == nil {
		s.rec.IncItemsWatched(1)
	}
}

func (s *Source) removeKey(key string) {
	if s.files.Remove(key) {
		s.rec.IncItemsWatched(-1)
	}
}

// Key returns the collection key for the record.
func (r FileRecord) Key() string { return r.Path }

// startWatcher begins recursive fsnotify watching of the root. It runs under
// the runtime lock (first live subscriber), so the event loop goes to its
// own goroutine.
func (s *Source) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return builderrors.ResourceActivationFailed("fswatch:"+s.root, err)
	}
	if err := addDirsRecursive(w, s.root, s.logger); err != nil {
		_ = w.Close()
		return builderrors.ResourceActivationFailed("fswatch:"+s.root, err)
	}

	s.mu.Lock()
	s.watcher = w
	s.coal = NewCoalescer(s.window, s.applyPaths)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.watchLoop(w, s.done)
	s.logger.Info("file watcher started", logfields.Path(s.root))
	return nil
}

func (s *Source) stopWatcher() {
	s.mu.Lock()
	w, coal, done := s.watcher, s.coal, s.done
	s.watcher, s.coal, s.done = nil, nil, nil
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	if coal != nil {
		coal.Stop()
	}
	if w != nil {
		_ = w.Close()
	}
	s.logger.Info("file watcher stopped", logfields.Path(s.root))
}

func (s *Source) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			s.handleEvent(w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (s *Source) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	// New directories need watches of their own before events under them
	// can arrive.
	if ev.Op.Has(fsnotify.Create) {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if err := addDirsRecursive(w, ev.Name, s.logger); err != nil {
				s.logger.Warn("watch add failed", logfields.Path(ev.Name), logfields.Error(err))
			}
		}
	}
	s.mu.Lock()
	coal := s.coal
	s.mu.Unlock()
	if coal != nil {
		coal.Offer(ev.Name)
	}
}

// applyPaths reconciles one coalesced burst against the collection.
func (s *Source) applyPaths(paths []string) {
	s.rec.IncCoalescedEvents(len(paths))

	type change struct {
		key string
		rec FileRecord
		del bool
	}
	var changes []change
	for _, path := range paths {
		st, err := os.Stat(path)
		switch {
		case err != nil:
			// Removed (or unreadable). Deletions of whole directories arrive
			// as one event for the directory, so drop every key under it.
			rel, relErr := filepath.Rel(s.root, path)
			if relErr != nil {
				continue
			}
			changes = append(changes, change{key: filepath.ToSlash(rel), del: true})
		case st.IsDir():
			for _, rec := range s.scanDir(path) {
				changes = append(changes, change{key: rec.Key(), rec: rec})
			}
		case s.tracks(path):
			rec, readErr := s.read(path)
			if readErr != nil {
				s.logger.Warn("skipping unreadable file", logfields.Path(path), logfields.Error(readErr))
				continue
			}
			changes = append(changes, change{key: rec.Key(), rec: rec})
		}
	}
	if len(changes) == 0 {
		return
	}

	s.rt.Batch(func() {
		for _, ch := range changes {
			if !ch.del {
				s.upsert(ch.rec)
				continue
			}
			if _, ok := s.files.Get(ch.key); ok {
				s.removeKey(ch.key)
				continue
			}
			prefix := ch.key + "/"
			for _, key := range s.files.Keys() {
				if len(key) > len(prefix) && key[:len(prefix)] == prefix {
					s.removeKey(key)
				}
			}
		}
	})
	s.logger.Debug("applied file changes", logfields.Path(s.root), slog.Int("changes", len(changes)))
}

func (s *Source) scanDir(dir string) []FileRecord {
	var recs []FileRecord
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !s.tracks(path) {
			return nil
		}
		if rec, readErr := s.read(path); readErr == nil {
			recs = append(recs, rec)
		}
		return nil
	})
	return recs
}

func addDirsRecursive(w *fsnotify.Watcher, root string, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				logger.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}
