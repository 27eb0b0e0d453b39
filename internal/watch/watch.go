// Package watch rebuilds tocs when files below the input directory change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/tocbuilder/internal/build"
	"git.home.luguber.info/inful/tocbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/tocbuilder/internal/logfields"
)

const defaultDebounce = 300 * time.Millisecond

// Rebuilder is rebuilt after every settled batch of changes.
type Rebuilder interface {
	Refresh(ctx context.Context) error
	Build(ctx context.Context) (*build.BuildResult, error)
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last change before rebuilding.
	Debounce time.Duration
	// Ignore lists directories whose changes never trigger a rebuild,
	// typically the output and workspace directories.
	Ignore []string
	Logger *slog.Logger
	// OnBuild is called after every rebuild.
	OnBuild func(*build.BuildResult, error)
}

// Watcher watches a directory tree and drives a Rebuilder.
type Watcher struct {
	root      string
	rebuilder Rebuilder
	opts      Options
	ignore    []string
	logger    *slog.Logger

	mu           sync.Mutex
	fingerprints map[string]string
}

// New creates a Watcher for the tree at root.
func New(root string, r Rebuilder, opts Options) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		root:         absRoot,
		rebuilder:    r,
		opts:         opts,
		logger:       logger,
		fingerprints: make(map[string]string),
	}
	for _, dir := range opts.Ignore {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	return w, nil
}

// Run watches until ctx is done. Changes are debounced; a batch whose files
// all kept their content does not trigger a rebuild.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	w.snapshot()
	if err := w.addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("Watching for changes", logfields.Path(w.root))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(fw, ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		case <-fire:
			fire = nil
			w.rebuild(ctx)
		}
	}
}

// handleEvent reports whether ev should schedule a rebuild.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if w.ignored(ev.Name) {
		return false
	}
	switch {
	case ev.Op.Has(fsnotify.Create):
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addDirsRecursive(fw, ev.Name)
			return true
		}
		return w.changed(ev.Name)
	case ev.Op.Has(fsnotify.Write):
		return w.changed(ev.Name)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.forget(ev.Name)
		return true
	}
	return false
}

func (w *Watcher) rebuild(ctx context.Context) {
	w.logger.Info("Change detected; rebuilding tocs")
	start := time.Now()
	res, err := w.build(ctx)
	if err != nil {
		w.logger.Warn("Rebuild failed", logfields.Error(err))
	} else {
		w.logger.Info("Rebuild complete",
			logfields.Count(len(res.Tocs)),
			logfields.Entries(len(res.Entries)),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	}
	if w.opts.OnBuild != nil {
		w.opts.OnBuild(res, err)
	}
}

func (w *Watcher) build(ctx context.Context) (*build.BuildResult, error) {
	if err := w.rebuilder.Refresh(ctx); err != nil {
		return nil, err
	}
	return w.rebuilder.Build(ctx)
}

// changed records the file's fingerprint and reports whether it differs
// from the previous one. Unreadable files count as changed.
func (w *Watcher) changed(file string) bool {
	fp, err := fingerprint(file)
	if err != nil {
		w.forget(file)
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.fingerprints[file]; ok && old == fp {
		w.logger.Debug("Ignoring write without content change", logfields.File(file))
		return false
	}
	w.fingerprints[file] = fp
	return true
}

func (w *Watcher) forget(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p := range w.fingerprints {
		if p == file || strings.HasPrefix(p, file+string(os.PathSeparator)) {
			delete(w.fingerprints, p)
		}
	}
}

// snapshot fingerprints every watched file so the first no-op write after
// startup is recognized.
func (w *Watcher) snapshot() {
	_ = filepath.WalkDir(w.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != w.root && w.ignored(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.ignored(p) {
			return nil
		}
		if fp, err := fingerprint(p); err == nil {
			w.mu.Lock()
			w.fingerprints[p] = fp
			w.mu.Unlock()
		}
		return nil
	})
}

func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.ignored(p) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

func (w *Watcher) ignored(p string) bool {
	for _, dir := range w.ignore {
		if p == dir || strings.HasPrefix(p, dir+string(os.PathSeparator)) {
			return true
		}
	}
	return shouldIgnoreName(filepath.Base(p))
}

// shouldIgnoreName reports hidden files, editor swap files and OS litter.
func shouldIgnoreName(base string) bool {
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}

// fingerprint hashes a file's content. Markdown frontmatter and body are
// hashed as separate parts; other files are hashed whole.
func fingerprint(file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(filepath.Ext(file), ".md") {
		if fm, body, err := frontmatter.Split(data); err == nil {
			return mdfp.CalculateFingerprintFromParts(string(fm), string(body)), nil
		}
	}
	return mdfp.CalculateFingerprintFromParts("", string(data)), nil
}
