package toc

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/tocbuilder/internal/fsutil"
	"git.home.luguber.info/inful/tocbuilder/internal/logfields"
	"git.home.luguber.info/inful/tocbuilder/internal/metrics"
	"git.home.luguber.info/inful/tocbuilder/internal/templating"
	"git.home.luguber.info/inful/tocbuilder/internal/util/sets"
)

// Defaults applied to zero Options fields.
const (
	DefaultTocFilename     = "toc.yaml"
	DefaultExtension       = ".md"
	DefaultConcurrency     = 8
	DefaultMaxIncludeDepth = 64
)

const (
	errorContextPath        = "path"
	errorContextIncludeFrom = "from"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tocbuilder/toc-item"))

// Interpolator applies substitutions and conditional blocks to text.
type Interpolator interface {
	Interpolate(ctx context.Context, text string, vars map[string]any, path string, opts templating.Options) (string, error)
}

// Evaluator evaluates item conditions.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, vars map[string]any) (bool, error)
}

// VarsProvider returns the variables in effect for a file.
type VarsProvider interface {
	Vars(ctx context.Context, path string) (map[string]any, error)
}

// StaticVars is a VarsProvider returning the same variables for every file.
type StaticVars map[string]any

// Vars implements VarsProvider.
func (v StaticVars) Vars(context.Context, string) (map[string]any, error) {
	return v, nil
}

// MetaSink receives per-file metadata discovered during resolution.
type MetaSink interface {
	RecordSourcePath(ctx context.Context, target, origin string) error
	RecordRestrictedAccess(ctx context.Context, file string, access []string) error
}

type discardMeta struct{}

func (discardMeta) RecordSourcePath(context.Context, string, string) error         { return nil }
func (discardMeta) RecordRestrictedAccess(context.Context, string, []string) error { return nil }

// Options configures resolution behavior.
type Options struct {
	TocFilename          string
	IgnoreStages         []string
	RemoveHiddenItems    bool
	ResolveConditions    bool
	ResolveSubstitutions bool
	Concurrency          int
	DefaultExtension     string
	CopyExcludes         []string
	MaxIncludeDepth      int
}

func (o Options) withDefaults() Options {
	if o.TocFilename == "" {
		o.TocFilename = DefaultTocFilename
	}
	if o.DefaultExtension == "" {
		o.DefaultExtension = DefaultExtension
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxIncludeDepth <= 0 {
		o.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	return o
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithInterpolator replaces the text templating engine.
func WithInterpolator(i Interpolator) ServiceOption { return func(s *Service) { s.interpolator = i } }

// WithEvaluator replaces the condition evaluator.
func WithEvaluator(e Evaluator) ServiceOption { return func(s *Service) { s.evaluator = e } }

// WithVars sets the variables provider.
func WithVars(v VarsProvider) ServiceOption { return func(s *Service) { s.vars = v } }

// WithMeta sets the metadata sink.
func WithMeta(m MetaSink) ServiceOption { return func(s *Service) { s.meta = m } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) ServiceOption { return func(s *Service) { s.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption { return func(s *Service) { s.logger = l } }

// WithHooks shares a hook set, e.g. one populated before the service exists.
func WithHooks(h *Hooks) ServiceOption { return func(s *Service) { s.hooks = h } }

// Service resolves tocs from a filesystem and caches the results.
// All methods are safe for concurrent use.
type Service struct {
	opts         Options
	fs           afero.Fs
	copier       *fsutil.Copier
	interpolator Interpolator
	evaluator    Evaluator
	vars         VarsProvider
	meta         MetaSink
	recorder     metrics.Recorder
	logger       *slog.Logger
	hooks        *Hooks

	loads     *xsync.Map[string, *future[*Toc]]
	includes  *xsync.Map[string, *future[*Toc]]
	files     *xsync.Map[string, *future[*RawToc]]
	copies    *xsync.Map[string, *future[[]fsutil.CopiedFile]]
	generated *xsync.Map[string, *future[*RawToc]]
	dumps     *xsync.Map[string, *future[[]byte]]
	tocs      *xsync.Map[string, *Toc]
	waits     *waitGraph

	entriesMu sync.Mutex
	entries   sets.Set[string]
}

// NewService creates a Service reading from fs. Paths given to the service
// are relative to the root of fs.
func NewService(fs afero.Fs, opts Options, options ...ServiceOption) (*Service, error) {
	opts = opts.withDefaults()
	copier, err := fsutil.NewCopier(fs, opts.CopyExcludes)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid copy exclude pattern").Fatal().Build()
	}
	engine := templating.NewEngine()
	s := &Service{
		opts:         opts,
		fs:           fs,
		copier:       copier,
		interpolator: engine,
		evaluator:    engine,
		vars:         StaticVars(nil),
		meta:         discardMeta{},
		recorder:     metrics.NoopRecorder{},
		logger:       slog.Default(),
		hooks:        NewHooks(),
	}
	for _, o := range options {
		o(s)
	}
	s.initCaches()
	return s, nil
}

func (s *Service) initCaches() {
	s.loads = xsync.NewMap[string, *future[*Toc]]()
	s.includes = xsync.NewMap[string, *future[*Toc]]()
	s.files = xsync.NewMap[string, *future[*RawToc]]()
	s.copies = xsync.NewMap[string, *future[[]fsutil.CopiedFile]]()
	s.generated = xsync.NewMap[string, *future[*RawToc]]()
	s.dumps = xsync.NewMap[string, *future[[]byte]]()
	s.tocs = xsync.NewMap[string, *Toc]()
	s.waits = newWaitGraph()
	s.entries = sets.New[string]()
}

// Hooks returns the service's extension points.
func (s *Service) Hooks() *Hooks { return s.hooks }

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Load reads and fully resolves the top-level toc at p. Concurrent and
// repeated calls for the same path share one result, including failures.
// A toc whose stage is ignored yields (nil, nil).
func (s *Service) Load(ctx context.Context, p string) (*Toc, error) {
	p = NormalizePath(p)
	f, owner := claim(s.loads, p)
	if !owner {
		s.recorder.IncCacheHit(metrics.CacheLoad)
		return f.wait(ctx)
	}
	start := time.Now()
	toc, err := s.load(ctx, p)
	s.recorder.ObserveLoadDuration(time.Since(start), err == nil)
	f.settle(toc, err)
	return toc, err
}

func (s *Service) load(ctx context.Context, p string) (*Toc, error) {
	raw, err := s.readToc(ctx, p, "")
	if err != nil {
		return nil, err
	}
	if s.skipped(raw) {
		s.logger.Info("Skipping toc with ignored stage", logfields.Path(p), logfields.Stage(raw.Stage))
		return nil, nil
	}
	rc := IncludeInfo{}.context(p)
	toc, err := s.resolve(ctx, rc, raw)
	if err != nil {
		return nil, err
	}
	assignIDs(p, "", toc.Items)
	s.tocs.Store(p, toc)

	if err := s.hooks.notify(ctx, s.hooks.observers(false), toc, p); err != nil {
		s.logger.Warn("Toc loaded observer failed", logfields.Path(p), logfields.Error(err))
	}
	count, err := s.registerEntries(ctx, p, toc)
	if err != nil {
		return nil, err
	}
	if err := s.hooks.notify(ctx, s.hooks.observers(true), toc, p); err != nil {
		s.logger.Warn("Toc resolved observer failed", logfields.Path(p), logfields.Error(err))
	}
	s.logger.Debug("Toc resolved", logfields.Path(p), logfields.Entries(count))
	return toc, nil
}

// Include resolves p as included with info. Results are shared per path and
// include context.
func (s *Service) Include(ctx context.Context, p string, info IncludeInfo) (*Toc, error) {
	p = NormalizePath(p)
	if info.Mode == "" {
		info.Mode = ModeRootMerge
	}
	if info.Content != nil && info.contentKey == "" {
		info.contentKey = fmt.Sprintf("content:%p", info.Content)
	}
	if slices.Contains(info.chain, p) {
		return nil, circularInclude(append(slices.Clone(info.chain), p))
	}
	rc := info.context(p)
	if len(rc.chain) > s.opts.MaxIncludeDepth {
		return nil, errors.IncludeError(fmt.Sprintf("include depth exceeds %d", s.opts.MaxIncludeDepth)).
			WithContext(errorContextPath, p).
			WithContext(errorContextIncludeFrom, info.Parent).
			Build()
	}

	key := rc.key(info.contentKey)
	f, owner := claim(s.includes, key)
	if !owner {
		s.recorder.IncCacheHit(metrics.CacheInclude)
		// The owner may itself be waiting, through sibling includes, on an
		// include this chain holds.
		if loop := s.waits.enter(info.held, key, p); loop != nil {
			return nil, circularInclude(loop)
		}
		defer s.waits.leave(info.held, key)
		return f.wait(ctx)
	}
	rc.held = append(slices.Clone(info.held), heldInclude{key: key, path: p})
	toc, err := s.include(ctx, rc, info)
	f.settle(toc, err)
	return toc, err
}

func circularInclude(chain []string) error {
	return errors.IncludeError("circular include "+strings.Join(chain, " -> ")).
		WithContext(errorContextPath, chain[len(chain)-1]).
		Build()
}

func (s *Service) include(ctx context.Context, rc resolveContext, info IncludeInfo) (*Toc, error) {
	s.recorder.IncInclude(string(rc.mode))
	s.logger.Debug("Including toc",
		logfields.Path(rc.path),
		logfields.From(rc.from),
		logfields.Mode(string(rc.mode)),
		logfields.MergeBase(rc.base))

	var raw *RawToc
	var err error
	if info.Content != nil {
		raw, err = deepCopy(info.Content)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryInternal, "unable to copy generated toc").Build()
		}
	} else {
		raw, err = s.readToc(ctx, rc.path, info.Parent)
		if err != nil {
			return nil, err
		}
	}
	if s.skipped(raw) {
		s.logger.Debug("Skipping included toc with ignored stage", logfields.Path(rc.path), logfields.Stage(raw.Stage))
		return nil, nil
	}
	if rc.mode.IsMerge() && info.Content == nil {
		if err := s.copyToBase(ctx, rc); err != nil {
			return nil, err
		}
	}
	return s.resolve(ctx, rc, raw)
}

// copyToBase copies the directory of a merged toc into its merge base.
func (s *Service) copyToBase(ctx context.Context, rc resolveContext) error {
	src, dst := path.Dir(rc.path), rc.base
	if src == dst {
		return nil
	}
	f, owner := claim(s.copies, src+"\x00"+dst)
	if !owner {
		s.recorder.IncCacheHit(metrics.CacheCopy)
		_, err := f.wait(ctx)
		return err
	}
	files, err := s.copier.CopyDir(src, dst, path.Base(rc.path))
	if err != nil {
		err = errors.WrapError(err, errors.CategoryFileSystem, fmt.Sprintf("unable to merge %s into %s", src, dst)).
			WithContext(errorContextPath, rc.path).
			Build()
	}
	for _, cf := range files {
		if merr := s.meta.RecordSourcePath(ctx, cf.To, cf.From); merr != nil {
			s.logger.Warn("Unable to record source path", logfields.File(cf.To), logfields.Error(merr))
		}
	}
	s.recorder.AddCopiedFiles(len(files))
	f.settle(files, err)
	return err
}

// readToc returns a private copy of the parsed toc at p. from names the
// including toc for error messages.
func (s *Service) readToc(ctx context.Context, p, from string) (*RawToc, error) {
	f, owner := claim(s.files, p)
	var (
		raw *RawToc
		err error
	)
	if owner {
		raw, err = s.parseFile(p)
		f.settle(raw, err)
	} else {
		s.recorder.IncCacheHit(metrics.CacheFile)
		raw, err = f.wait(ctx)
	}
	if err != nil {
		msg := "unable to resolve toc " + p
		if from != "" && from != p {
			msg += " (included from " + from + ")"
		}
		return nil, errors.TocError(msg).
			WithCause(err).
			WithContext(errorContextPath, p).
			WithContext(errorContextIncludeFrom, from).
			Build()
	}
	return deepCopy(raw)
}

func (s *Service) parseFile(p string) (*RawToc, error) {
	data, err := afero.ReadFile(s.fs, p)
	s.recorder.IncFileRead()
	if err != nil {
		return nil, err
	}
	raw := &RawToc{}
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) skipped(raw *RawToc) bool {
	return raw != nil && raw.Stage != "" && slices.Contains(s.opts.IgnoreStages, raw.Stage)
}

func (s *Service) registerEntries(ctx context.Context, tocPath string, toc *Toc) (int, error) {
	found := sets.New[string]()
	record := func(href string, access []string) error {
		entry, ok := entryPath(tocPath, href)
		if !ok {
			return nil
		}
		found.Add(entry)
		if len(access) > 0 {
			return s.meta.RecordRestrictedAccess(ctx, entry, access)
		}
		return nil
	}
	if err := record(toc.Href, nil); err != nil {
		return 0, err
	}
	err := VisitItems(toc.Items, func(item *Item) error {
		return record(item.Href, item.RestrictedAccess)
	})
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryMeta, "unable to record restricted access").
			WithContext(errorContextPath, tocPath).
			Build()
	}
	s.entriesMu.Lock()
	for e := range found {
		s.entries.Add(e)
	}
	total := len(s.entries)
	s.entriesMu.Unlock()
	s.recorder.SetEntries(total)
	return len(found), nil
}

// assignIDs gives every item without an id a stable one derived from the
// toc path, its position and its content.
func assignIDs(tocPath, prefix string, items []*Item) {
	for i, item := range items {
		pos := fmt.Sprintf("%s/%d", prefix, i)
		if item.ID == "" {
			item.ID = uuid.NewSHA1(idNamespace, []byte(tocPath+"#"+pos+"|"+item.Name+"|"+item.Href)).String()
		}
		assignIDs(tocPath, pos, item.Items)
	}
}

// Dump serializes the resolved toc at p after the dump transforms. The toc
// is loaded first if needed. A skipped toc dumps to nil.
func (s *Service) Dump(ctx context.Context, p string) ([]byte, error) {
	p = NormalizePath(p)
	f, owner := claim(s.dumps, p)
	if !owner {
		s.recorder.IncCacheHit(metrics.CacheDump)
		return f.wait(ctx)
	}
	data, err := s.dump(ctx, p)
	f.settle(data, err)
	return data, err
}

func (s *Service) dump(ctx context.Context, p string) ([]byte, error) {
	toc, ok := s.tocs.Load(p)
	if !ok {
		var err error
		if toc, err = s.Load(ctx, p); err != nil {
			return nil, err
		}
		if toc == nil {
			return nil, nil
		}
	}
	snapshot, err := deepCopy(toc)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "unable to copy toc").Build()
	}
	if snapshot, err = s.hooks.runDump(ctx, snapshot, p); err != nil {
		return nil, errors.WrapError(err, errors.CategoryToc, "dump transform failed").
			WithContext(errorContextPath, p).
			Build()
	}
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "unable to serialize toc").Build()
	}
	return data, nil
}

// For returns the path of the nearest loaded toc owning the file at p,
// searching p's directory and then its ancestors.
func (s *Service) For(p string) (string, error) {
	p = NormalizePath(p)
	dir := path.Dir(p)
	for {
		candidate := NormalizePath(path.Join(dir, s.opts.TocFilename))
		if _, ok := s.tocs.Load(candidate); ok {
			return candidate, nil
		}
		if dir == "." || dir == ".." || dir == "/" {
			return "", errors.ConfigError("toc for "+p+" is not found").
				WithContext(errorContextPath, p).
				Build()
		}
		dir = path.Dir(dir)
	}
}

// Toc returns the resolved toc loaded for p.
func (s *Service) Toc(p string) (*Toc, bool) {
	return s.tocs.Load(NormalizePath(p))
}

// Entries returns every content path referenced by loaded tocs, sorted.
func (s *Service) Entries() []string {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	return sets.Sorted(s.entries)
}

// Tocs returns the paths of all loaded tocs, sorted.
func (s *Service) Tocs() []string {
	var out []string
	s.tocs.Range(func(p string, _ *Toc) bool {
		out = append(out, p)
		return true
	})
	slices.Sort(out)
	return out
}

// Reset drops every cached result so the next calls start from scratch.
// Hooks are kept.
func (s *Service) Reset() {
	s.loads.Clear()
	s.includes.Clear()
	s.files.Clear()
	s.copies.Clear()
	s.generated.Clear()
	s.dumps.Clear()
	s.tocs.Clear()
	s.entriesMu.Lock()
	s.entries = sets.New[string]()
	s.entriesMu.Unlock()
}
