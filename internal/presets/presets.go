// Package presets provides template variables from presets.yaml files.
//
// A presets file maps group names to variable sets. Every file from the
// project root down to a toc's directory contributes its "default" group and
// then the selected preset group, deeper files overriding shallower ones.
// Explicit values from configuration override everything.
package presets

import (
	"context"
	"os"
	"path"

	"dario.cat/mergo"
	"github.com/mitchellh/copystructure"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
)

const (
	DefaultFilename = "presets.yaml"
	DefaultGroup    = "default"
)

// Options configures a Provider.
type Options struct {
	Filename string
	Preset   string
	Values   map[string]any
}

// Provider resolves the variables in effect for a file. Results are cached
// per directory and must be treated as read-only.
type Provider struct {
	fs    afero.Fs
	opts  Options
	dirs  *xsync.Map[string, map[string]any]
	final *xsync.Map[string, map[string]any]
}

// NewProvider returns a Provider reading presets from fs.
func NewProvider(fs afero.Fs, opts Options) *Provider {
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}
	return &Provider{
		fs:    fs,
		opts:  opts,
		dirs:  xsync.NewMap[string, map[string]any](),
		final: xsync.NewMap[string, map[string]any](),
	}
}

// Vars returns the variables for the file at p.
func (p *Provider) Vars(_ context.Context, file string) (map[string]any, error) {
	dir := path.Dir(path.Clean(file))
	if vars, ok := p.final.Load(dir); ok {
		return vars, nil
	}
	inherited, err := p.dirVars(dir)
	if err != nil {
		return nil, err
	}
	vars, err := clone(inherited)
	if err != nil {
		return nil, err
	}
	if vars == nil {
		vars = map[string]any{}
	}
	if len(p.opts.Values) > 0 {
		if err := mergo.Merge(&vars, p.opts.Values, mergo.WithOverride); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "unable to apply variable overrides").Build()
		}
	}
	p.final.Store(dir, vars)
	return vars, nil
}

// Reset drops cached variables, e.g. after presets files changed.
func (p *Provider) Reset() {
	p.dirs.Clear()
	p.final.Clear()
}

func (p *Provider) dirVars(dir string) (map[string]any, error) {
	if vars, ok := p.dirs.Load(dir); ok {
		return vars, nil
	}
	var vars map[string]any
	if dir != "." && dir != "/" {
		parent, err := p.dirVars(path.Dir(dir))
		if err != nil {
			return nil, err
		}
		if vars, err = clone(parent); err != nil {
			return nil, err
		}
	}
	if vars == nil {
		vars = map[string]any{}
	}
	groups, err := p.readGroups(path.Join(dir, p.opts.Filename))
	if err != nil {
		return nil, err
	}
	for _, name := range []string{DefaultGroup, p.opts.Preset} {
		group, ok := groups[name]
		if !ok || name == "" {
			continue
		}
		if err := mergo.Merge(&vars, group, mergo.WithOverride); err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "unable to merge presets").
				WithContext("path", dir).
				Build()
		}
	}
	p.dirs.Store(dir, vars)
	return vars, nil
}

func (p *Provider) readGroups(file string) (map[string]map[string]any, error) {
	data, err := afero.ReadFile(p.fs, file)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "unable to read presets").
			WithContext("path", file).
			Build()
	}
	var groups map[string]map[string]any
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid presets file").
			WithContext("path", file).
			Build()
	}
	return groups, nil
}

// clone deep-copies vars so merges never write into cached parents.
func clone(vars map[string]any) (map[string]any, error) {
	c, err := copystructure.Copy(vars)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "unable to copy variables").Build()
	}
	out, _ := c.(map[string]any)
	return out, nil
}
