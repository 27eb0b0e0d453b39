package toc

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// IncludeInterceptor runs before an include is resolved. It may return a
// replacement item; returning nil drops the item. The include path it sees
// is already project-relative, and a replaced path is read as
// project-relative too, not relative to the including toc.
type IncludeInterceptor func(ctx context.Context, item *Item, path string) (*Item, error)

// Observer is notified with a private copy of a resolved toc.
type Observer func(ctx context.Context, toc *Toc, path string) error

// DumpTransform rewrites a copy of a toc before it is serialized.
type DumpTransform func(ctx context.Context, toc *Toc, path string) (*Toc, error)

// IncluderOptions are the options of one includer invocation. The "path" key
// always holds the project-relative toc path being generated.
type IncluderOptions map[string]any

// Path returns the generated toc path.
func (o IncluderOptions) Path() string {
	p, _ := o["path"].(string)
	return p
}

// String returns a string option or def.
func (o IncluderOptions) String(key, def string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Bool returns a boolean option or def.
func (o IncluderOptions) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// Includer generates toc content. It receives the draft accumulated so far
// and returns the draft for the next includer.
type Includer interface {
	Include(ctx context.Context, draft *RawToc, options IncluderOptions, from string) (*RawToc, error)
}

// IncluderFunc adapts a function to Includer.
type IncluderFunc func(ctx context.Context, draft *RawToc, options IncluderOptions, from string) (*RawToc, error)

// Include implements Includer.
func (f IncluderFunc) Include(ctx context.Context, draft *RawToc, options IncluderOptions, from string) (*RawToc, error) {
	return f(ctx, draft, options, from)
}

// Hooks holds the extension points of a Service. Registration is safe at
// any time, but handlers registered mid-build only see later work.
type Hooks struct {
	mu        sync.RWMutex
	include   []IncludeInterceptor
	includers map[string][]Includer
	loaded    []Observer
	resolved  []Observer
	dump      []DumpTransform
}

// NewHooks returns an empty hook set.
func NewHooks() *Hooks {
	return &Hooks{includers: make(map[string][]Includer)}
}

// OnInclude registers an include interceptor. Interceptors run in
// registration order, each receiving the previous one's result.
func (h *Hooks) OnInclude(fn IncludeInterceptor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.include = append(h.include, fn)
}

// RegisterIncluder adds a handler for the named includer. Several handlers
// under one name run in registration order.
func (h *Hooks) RegisterIncluder(name string, inc Includer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.includers[name] = append(h.includers[name], inc)
}

// OnLoaded registers an observer called once a toc is resolved, before its
// entries are registered.
func (h *Hooks) OnLoaded(fn Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaded = append(h.loaded, fn)
}

// OnResolved registers an observer called after a toc's entries are registered.
func (h *Hooks) OnResolved(fn Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resolved = append(h.resolved, fn)
}

// OnDump registers a transform applied to tocs before serialization.
func (h *Hooks) OnDump(fn DumpTransform) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dump = append(h.dump, fn)
}

func (h *Hooks) runInclude(ctx context.Context, item *Item, path string) (*Item, error) {
	h.mu.RLock()
	fns := append([]IncludeInterceptor(nil), h.include...)
	h.mu.RUnlock()
	for _, fn := range fns {
		next, err := fn(ctx, item, path)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		item = next
	}
	return item, nil
}

func (h *Hooks) lookupIncluder(name string) ([]Includer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handlers, ok := h.includers[name]
	return append([]Includer(nil), handlers...), ok && len(handlers) > 0
}

func (h *Hooks) observers(resolved bool) []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if resolved {
		return append([]Observer(nil), h.resolved...)
	}
	return append([]Observer(nil), h.loaded...)
}

// notify runs observers concurrently, each on its own copy of toc, and
// returns their combined errors.
func (h *Hooks) notify(ctx context.Context, fns []Observer, toc *Toc, path string) error {
	if len(fns) == 0 {
		return nil
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, fn := range fns {
		snapshot, err := deepCopy(toc)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx, snapshot, path); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

func (h *Hooks) runDump(ctx context.Context, toc *Toc, path string) (*Toc, error) {
	h.mu.RLock()
	fns := append([]DumpTransform(nil), h.dump...)
	h.mu.RUnlock()
	for _, fn := range fns {
		next, err := fn(ctx, toc, path)
		if err != nil {
			return nil, err
		}
		if next != nil {
			toc = next
		}
	}
	return toc, nil
}
