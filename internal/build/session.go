package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/tocbuilder/internal/config"
	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/tocbuilder/internal/includers/generic"
	"git.home.luguber.info/inful/tocbuilder/internal/logfields"
	"git.home.luguber.info/inful/tocbuilder/internal/meta"
	"git.home.luguber.info/inful/tocbuilder/internal/metrics"
	"git.home.luguber.info/inful/tocbuilder/internal/presets"
	"git.home.luguber.info/inful/tocbuilder/internal/toc"
	"git.home.luguber.info/inful/tocbuilder/internal/workspace"
)

const persistentWorkspaceName = "workspace"

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithFs sets the filesystem holding input, workspace and output (the OS
// filesystem by default).
func WithFs(fs afero.Fs) SessionOption { return func(s *Session) { s.fs = fs } }

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) SessionOption { return func(s *Session) { s.logger = l } }

// WithRegistry sets the Prometheus registry used when metrics are enabled.
func WithRegistry(reg *prom.Registry) SessionOption { return func(s *Session) { s.registry = reg } }

// WithHooks registers extra includers and observers before the first load.
func WithHooks(setup func(*toc.Hooks)) SessionOption {
	return func(s *Session) { s.setup = append(s.setup, setup) }
}

// Session holds one configured toc service and its collaborators. It can
// resolve repeatedly; Refresh resynchronizes it with the input tree.
type Session struct {
	cfg      *config.Config
	fs       afero.Fs
	logger   *slog.Logger
	registry *prom.Registry
	setup    []func(*toc.Hooks)

	ws         *workspace.Manager
	store      meta.Store
	recorder   metrics.Recorder
	prometheus *metrics.PrometheusRecorder
	presets    *presets.Provider
	service    *toc.Service
	roots      []string
}

// Open prepares the workspace and wires every collaborator for cfg.
func Open(ctx context.Context, cfg *config.Config, options ...SessionOption) (*Session, error) {
	if cfg == nil {
		return nil, errors.ConfigError("config required").Build()
	}
	s := &Session{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, o := range options {
		o(s)
	}

	switch {
	case cfg.Workspace.InPlace:
		s.ws = workspace.NewInPlaceManager(s.fs, cfg.Input)
	case cfg.Workspace.Dir != "":
		s.ws = workspace.NewPersistentManager(s.fs, cfg.Workspace.Dir, persistentWorkspaceName)
	default:
		s.ws = workspace.NewManager(s.fs, "")
	}
	if err := s.ws.Create(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create workspace").Build()
	}
	if err := s.populate(ctx); err != nil {
		_ = s.ws.Cleanup()
		return nil, err
	}

	driver, err := meta.ParseDriver(cfg.Meta.Driver)
	if err != nil {
		_ = s.ws.Cleanup()
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid meta driver").Fatal().Build()
	}
	if s.store, err = meta.Open(driver, cfg.Meta.Path); err != nil {
		_ = s.ws.Cleanup()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		s.prometheus = metrics.NewPrometheusRecorder(s.registry)
		s.recorder = s.prometheus
	}

	wsFs := s.ws.Fs()
	s.presets = presets.NewProvider(wsFs, presets.Options{
		Filename: cfg.Vars.Presets,
		Preset:   cfg.Vars.Preset,
		Values:   cfg.Vars.Values,
	})

	hooks := toc.NewHooks()
	generic.Register(hooks, wsFs, s.logger)
	for _, fn := range s.setup {
		fn(hooks)
	}

	s.service, err = toc.NewService(wsFs, toc.Options{
		TocFilename:          cfg.Toc.Filename,
		IgnoreStages:         cfg.Toc.IgnoreStage,
		RemoveHiddenItems:    cfg.Toc.RemoveHiddenItems,
		ResolveConditions:    cfg.Toc.ResolveConditions,
		ResolveSubstitutions: cfg.Toc.ResolveSubstitutions,
		Concurrency:          cfg.Toc.Concurrency,
		DefaultExtension:     cfg.Toc.DefaultExtension,
		CopyExcludes:         cfg.Copy.Exclude,
		MaxIncludeDepth:      cfg.Toc.MaxIncludeDepth,
	},
		toc.WithVars(s.presets),
		toc.WithMeta(s.store),
		toc.WithRecorder(s.recorder),
		toc.WithLogger(s.logger),
		toc.WithHooks(hooks),
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Service returns the toc service.
func (s *Session) Service() *toc.Service { return s.service }

// Store returns the metadata store.
func (s *Session) Store() meta.Store { return s.store }

// Config returns the configuration the session was opened with.
func (s *Session) Config() *config.Config { return s.cfg }

// Workspace returns the directory tocs are resolved in.
func (s *Session) Workspace() string { return s.ws.Path() }

// Roots returns the top-level tocs the session resolves.
func (s *Session) Roots() []string { return slices.Clone(s.roots) }

// Refresh copies the input tree into the workspace again and drops every
// cached result. Call it before rebuilding after the input changed.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.populate(ctx); err != nil {
		return err
	}
	s.presets.Reset()
	s.service.Reset()
	return nil
}

func (s *Session) populate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.ws.Populate(s.cfg.Input, s.populateExcludes()...)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to populate workspace").Build()
	}
	s.logger.Debug("Workspace ready", logfields.Path(s.ws.Path()), logfields.Count(n))

	roots, err := s.discover()
	if err != nil {
		return err
	}
	s.roots = roots
	return nil
}

// populateExcludes keeps generated files out of the workspace copy.
func (s *Session) populateExcludes() []string {
	excludes := slices.Clone(s.cfg.Copy.Exclude)
	for _, p := range []string{s.cfg.Output, s.cfg.Meta.Path, s.cfg.Metrics.Textfile} {
		if rel, ok := relInside(s.cfg.Input, p); ok && rel != "." {
			excludes = append(excludes, rel)
		}
	}
	return excludes
}

// Resolve loads every top-level toc without writing output.
func (s *Session) Resolve(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	loaded := make([]*toc.Toc, len(s.roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Toc.Concurrency)
	for i, p := range s.roots {
		g.Go(func() error {
			t, err := s.service.Load(gctx, p)
			if err != nil {
				return err
			}
			loaded[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Toc resolution failed", logfields.Error(err))
		return nil, err
	}

	res := &BuildResult{
		Status:     BuildStatusSuccess,
		OutputPath: s.cfg.Output,
		Entries:    s.service.Entries(),
		StartTime:  start,
	}
	for i, p := range s.roots {
		if loaded[i] == nil {
			res.Skipped = append(res.Skipped, p)
			continue
		}
		res.Tocs = append(res.Tocs, p)
	}
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(start)

	s.logger.InfoContext(ctx, "Resolved tocs",
		logfields.Count(len(res.Tocs)),
		slog.Int("skipped", len(res.Skipped)),
		logfields.Entries(len(res.Entries)),
		logfields.DurationMS(float64(res.Duration.Microseconds())/1000))
	return res, nil
}

// Build resolves every top-level toc and writes the resolved tocs, the
// manifest and, when enabled, the metrics textfile.
func (s *Session) Build(ctx context.Context) (*BuildResult, error) {
	res, err := s.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.resetOutput(); err != nil {
		return nil, err
	}
	for _, p := range res.Tocs {
		data, err := s.service.Dump(ctx, p)
		if err != nil {
			return nil, err
		}
		if err := s.writeOutput(p, data); err != nil {
			return nil, err
		}
		res.FilesWritten++
	}

	m, err := s.manifest(ctx, res)
	if err != nil {
		return nil, err
	}
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	if err := s.writeOutput(ManifestFilename, data); err != nil {
		return nil, err
	}
	res.FilesWritten++

	if s.prometheus != nil && s.cfg.Metrics.Textfile != "" {
		if err := s.prometheus.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
			s.logger.WarnContext(ctx, "Failed to write metrics textfile", logfields.Error(err))
		}
	}

	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	s.logger.InfoContext(ctx, "Build complete",
		logfields.Path(res.OutputPath),
		logfields.Count(res.FilesWritten),
		logfields.DurationMS(float64(res.Duration.Microseconds())/1000))
	return res, nil
}

// resetOutput empties the output directory unless it contains the input.
func (s *Session) resetOutput() error {
	out := s.cfg.Output
	if _, inside := relInside(out, s.cfg.Input); !inside {
		if err := s.fs.RemoveAll(out); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to clear output directory").
				WithContext("path", out).
				Build()
		}
	}
	if err := s.fs.MkdirAll(out, 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", out).
			Build()
	}
	return nil
}

func (s *Session) writeOutput(rel string, data []byte) error {
	target := filepath.Join(s.cfg.Output, filepath.FromSlash(rel))
	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", target).
			Build()
	}
	if err := afero.WriteFile(s.fs, target, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write output").
			WithContext("path", target).
			Build()
	}
	s.logger.Debug("Wrote output", logfields.File(target))
	return nil
}

// Ownership describes which toc serves a file and where it came from.
type Ownership struct {
	File             string   `yaml:"file"`
	Toc              string   `yaml:"toc"`
	SourcePath       string   `yaml:"source-path,omitempty"`
	RestrictedAccess []string `yaml:"restricted-access,omitempty"`
}

// Owner reports the nearest loaded toc for file along with its recorded
// metadata. Resolve must have run first.
func (s *Session) Owner(ctx context.Context, file string) (*Ownership, error) {
	file = toc.NormalizePath(file)
	owner, err := s.service.For(file)
	if err != nil {
		return nil, err
	}
	o := &Ownership{File: file, Toc: owner}
	if src, ok, err := s.store.SourcePath(ctx, file); err != nil {
		return nil, err
	} else if ok {
		o.SourcePath = src
	}
	if o.RestrictedAccess, err = s.store.RestrictedAccess(ctx, file); err != nil {
		return nil, err
	}
	return o, nil
}

// Close releases the metadata store and removes an ephemeral workspace.
func (s *Session) Close() error {
	var err error
	if s.store != nil {
		err = multierr.Append(err, s.store.Close())
	}
	if s.ws != nil {
		err = multierr.Append(err, s.ws.Cleanup())
	}
	return err
}

// relInside returns p relative to base, slash separated, when p lies
// inside base.
func relInside(base, p string) (string, bool) {
	if base == "" || p == "" {
		return "", false
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", false
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absBase, absP)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
