// Package moddir discovers mod directories and reports each one exactly once.
//
// A mod directory is either configured directly or is a direct subdirectory of
// a configured root. At startup every existing mod directory is reported; with
// watching enabled, subdirectories created in a root later are reported once
// they have been quiet for the debounce interval. A new subdirectory is
// watched itself until it is reported, so files still being copied into it
// restart the quiet period.
package moddir

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RegisterFunc is called once for every discovered mod directory, with an
// absolute path. Calls are sequential.
type RegisterFunc func(ctx context.Context, dir string)

// Option configures a [Source].
type Option func(*Source)

// WithRoots adds mod roots.
func WithRoots(roots ...string) Option {
	return func(s *Source) { s.roots = append(s.roots, roots...) }
}

// WithDirectories adds mod directories.
func WithDirectories(dirs ...string) Option {
	return func(s *Source) { s.dirs = append(s.dirs, dirs...) }
}

// WithWatch enables watching the roots for new subdirectories.
func WithWatch(on bool) Option {
	return func(s *Source) { s.watch = on }
}

// WithDebounce sets how long a new directory must be quiet before it is
// reported. The default is 500ms.
func WithDebounce(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithScanned sets a function called once after the startup registration,
// before watching starts.
func WithScanned(fn func(ctx context.Context)) Option {
	return func(s *Source) { s.scanned = fn }
}

// Source reports mod directories to a [RegisterFunc].
type Source struct {
	register RegisterFunc
	scanned  func(ctx context.Context)
	roots    []string
	dirs     []string
	watch    bool
	debounce time.Duration

	// regMu serialises calls to register.
	regMu sync.Mutex

	mu      sync.Mutex
	seen    map[string]struct{}
	pending map[string]time.Time
	watched map[string]struct{} // roots added to watcher
	watcher *fsnotify.Watcher
}

// New creates a Source reporting to register.
func New(register RegisterFunc, opts ...Option) *Source {
	s := &Source{
		register: register,
		debounce: 500 * time.Millisecond,
		seen:     make(map[string]struct{}),
		pending:  make(map[string]time.Time),
		watched:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run reports every existing mod directory: configured directories first,
// then the subdirectories of each root in name order. Without watching it
// returns afterwards; with watching it keeps reporting new subdirectories of
// the roots until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	if s.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("moddir: create watcher: %w", err)
		}
		s.mu.Lock()
		s.watcher = w
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.watcher = nil
			clear(s.watched)
			s.mu.Unlock()
			w.Close()
		}()
	}

	for _, d := range s.dirs {
		s.AddDirectory(ctx, d)
	}
	for _, r := range s.roots {
		s.AddRoot(ctx, r)
	}
	if s.scanned != nil {
		s.scanned(ctx)
	}

	if !s.watch {
		return nil
	}
	s.watchLoop(ctx)
	return nil
}

// AddDirectory reports dir unless it was reported before.
func (s *Source) AddDirectory(ctx context.Context, dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		slog.Warn("moddir: cannot resolve directory", "dir", dir, "err", err)
		return
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		slog.Warn("moddir: not a directory, skipping", "dir", abs, "err", err)
		return
	}
	s.report(ctx, abs)
}

// AddRoot reports every subdirectory of root and, while [Source.Run] is
// watching, watches root for new ones.
func (s *Source) AddRoot(ctx context.Context, root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		slog.Warn("moddir: cannot resolve root", "root", root, "err", err)
		return
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		slog.Warn("moddir: cannot read root, skipping", "root", abs, "err", err)
		return
	}

	s.mu.Lock()
	w := s.watcher
	s.mu.Unlock()
	if w != nil {
		if err := w.Add(abs); err != nil {
			slog.Warn("moddir: cannot watch root", "root", abs, "err", err)
		} else {
			s.mu.Lock()
			s.watched[abs] = struct{}{}
			s.mu.Unlock()
			slog.Info("moddir: watching root for new mods", "root", abs)
		}
	}

	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, filepath.Join(abs, e.Name()))
		}
	}
	sort.Strings(subdirs)
	for _, d := range subdirs {
		s.report(ctx, d)
	}
}

// Registered returns every reported directory in name order.
func (s *Source) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.seen))
	for d := range s.seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (s *Source) report(ctx context.Context, dir string) {
	s.mu.Lock()
	if _, ok := s.seen[dir]; ok {
		s.mu.Unlock()
		return
	}
	s.seen[dir] = struct{}{}
	delete(s.pending, dir)
	s.mu.Unlock()

	s.regMu.Lock()
	defer s.regMu.Unlock()
	slog.Debug("moddir: registering mod directory", "dir", dir)
	s.register(ctx, dir)
}

// watchLoop handles file system events until ctx is cancelled.
func (s *Source) watchLoop(ctx context.Context) {
	s.mu.Lock()
	w := s.watcher
	s.mu.Unlock()

	tick := max(s.debounce/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("moddir: stopping watcher")
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			s.touch(w, event)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Error("moddir: watcher error", "err", err)

		case <-ticker.C:
			for _, dir := range s.due() {
				// Not watched when it was a plain file or is gone already.
				_ = w.Remove(dir)
				info, err := os.Stat(dir)
				if err != nil || !info.IsDir() {
					continue
				}
				s.report(ctx, dir)
			}
		}
	}
}

// touch restarts the quiet period of the mod directory event belongs to: the
// root entry it names, or the pending directory it happened in. A new
// directory in a root is watched so that writes into it are seen.
func (s *Source) touch(w *fsnotify.Watcher, event fsnotify.Event) {
	parent := filepath.Dir(event.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[parent]; ok {
		s.pending[parent] = time.Now()
		return
	}
	if _, ok := s.watched[parent]; !ok {
		return
	}
	if _, done := s.seen[event.Name]; done {
		return
	}
	_, known := s.pending[event.Name]
	s.pending[event.Name] = time.Now()
	if known || !event.Has(fsnotify.Create) {
		return
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if err := w.Add(event.Name); err != nil {
			slog.Warn("moddir: cannot watch new mod directory", "dir", event.Name, "err", err)
		}
	}
}

// due removes and returns the pending paths whose quiet period has passed.
func (s *Source) due() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p, last := range s.pending {
		if time.Since(last) >= s.debounce {
			out = append(out, p)
			delete(s.pending, p)
		}
	}
	sort.Strings(out)
	return out
}
