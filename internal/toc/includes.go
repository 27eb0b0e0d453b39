package toc

import (
	"context"
	"fmt"
	"maps"
	"path"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/tocbuilder/internal/logfields"
	"git.home.luguber.info/inful/tocbuilder/internal/metrics"
)

type includeResult struct {
	item     *Item   // node after interceptors, nil when dropped
	items    []*Item // included items relative to the including toc's directory
	included bool
}

// processItems resolves every include node of toc concurrently and splices
// the results in. A named node keeps its place and gains the included items;
// an unnamed node is replaced by them.
func (s *Service) processItems(ctx context.Context, rc resolveContext, toc *Toc) error {
	var nodes []*Item
	_ = VisitItems(toc.Items, func(item *Item) error {
		if item.Include != nil {
			nodes = append(nodes, item)
		}
		return nil
	})
	if len(nodes) == 0 {
		return nil
	}

	results := make([]includeResult, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, node := range nodes {
		g.Go(func() error {
			r, err := s.includeNode(gctx, rc, node)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	byNode := make(map[*Item]includeResult, len(nodes))
	for i, node := range nodes {
		byNode[node] = results[i]
	}
	items, err := WalkItems(toc.Items, func(item *Item) ([]*Item, error) {
		r, ok := byNode[item]
		if !ok {
			return keep(item), nil
		}
		if r.item == nil {
			return nil, nil
		}
		if !r.included {
			return keep(r.item), nil
		}
		node := r.item
		node.Include = nil
		if node.Name == "" {
			return r.items, nil
		}
		node.Items = append(node.Items, r.items...)
		return keep(node), nil
	})
	if err != nil {
		return err
	}
	toc.Items = items
	return nil
}

func (s *Service) includeNode(ctx context.Context, rc resolveContext, node *Item) (includeResult, error) {
	item, err := s.hooks.runInclude(ctx, node, rc.path)
	if err != nil {
		return includeResult{}, errors.WrapError(err, errors.CategoryInclude, "include interceptor failed").
			WithContext(errorContextPath, rc.path).
			Build()
	}
	if item == nil || item.Include == nil {
		return includeResult{item: item}, nil
	}
	inc := item.Include
	inc.Path = NormalizePath(inc.Path)
	if escapesRoot(inc.Path) {
		return includeResult{}, outsideRoot(rc, inc.Path)
	}

	mode, err := ParseIncludeMode(inc.Mode)
	if err != nil {
		return includeResult{}, errors.WrapError(err, errors.CategoryInclude, "invalid include mode").
			Fatal().
			WithContext(errorContextPath, rc.path).
			Build()
	}
	specs, declared, err := parseIncluders(inc.Includers)
	if err != nil {
		return includeResult{}, errors.WrapError(err, errors.CategoryInclude, "invalid includers of "+inc.Path).
			Fatal().
			WithContext(errorContextPath, rc.path).
			Build()
	}

	var (
		child   *Toc
		childRC resolveContext
	)
	if declared {
		if mode != "" && mode != ModeLink {
			return includeResult{}, errors.IncludeError(fmt.Sprintf("includers require link mode, got %s", mode)).
				WithContext(errorContextPath, rc.path).
				Build()
		}
		tocPath := inc.Path
		if path.Base(tocPath) != s.opts.TocFilename {
			tocPath = path.Join(tocPath, s.opts.TocFilename)
		}
		draft, key, err := s.generate(ctx, rc, tocPath, specs)
		if err != nil {
			return includeResult{}, err
		}
		info := rc.includeInfo(ModeLink)
		info.Content = draft
		info.contentKey = key
		childRC = info.context(tocPath)
		child, err = s.Include(ctx, tocPath, info)
		if err != nil {
			return includeResult{}, err
		}
	} else {
		if mode == "" {
			mode = rc.mode
		}
		if mode == "" {
			mode = ModeRootMerge
		}
		info := rc.includeInfo(mode)
		childRC = info.context(inc.Path)
		child, err = s.Include(ctx, inc.Path, info)
		if err != nil {
			return includeResult{}, err
		}
	}
	if child == nil {
		return includeResult{item: item, included: true}, nil
	}

	items, err := deepCopy(child.Items)
	if err != nil {
		return includeResult{}, errors.WrapError(err, errors.CategoryInternal, "unable to copy included items").Build()
	}
	convertItems(items, childRC.serveDir(), rc.tocDir())
	return includeResult{item: item, items: items, included: true}, nil
}

// generate runs the includer pipeline for tocPath. Identical pipelines for
// the same path run once; the returned key identifies the draft.
func (s *Service) generate(ctx context.Context, rc resolveContext, tocPath string, specs []IncluderSpec) (*RawToc, string, error) {
	fingerprint, err := yaml.Marshal(specs)
	if err != nil {
		return nil, "", errors.WrapError(err, errors.CategoryIncluder, "invalid includer options").Build()
	}
	key := tocPath + "\x00" + string(fingerprint)

	f, owner := claim(s.generated, key)
	if !owner {
		s.recorder.IncCacheHit(metrics.CacheIncluder)
		draft, err := f.wait(ctx)
		return draft, key, err
	}
	draft, err := s.runIncluders(ctx, rc, tocPath, specs)
	f.settle(draft, err)
	return draft, key, err
}

func (s *Service) runIncluders(ctx context.Context, rc resolveContext, tocPath string, specs []IncluderSpec) (*RawToc, error) {
	draft := &RawToc{}
	for _, spec := range specs {
		handlers, ok := s.hooks.lookupIncluder(spec.Name)
		if !ok {
			return nil, errors.IncluderError(fmt.Sprintf("includer %q is not registered", spec.Name)).
				WithContext(errorContextPath, rc.path).
				Build()
		}
		opts := IncluderOptions(maps.Clone(spec.Options))
		if opts == nil {
			opts = IncluderOptions{}
		}
		opts["path"] = tocPath
		s.logger.Debug("Running includer", logfields.Includer(spec.Name), logfields.Path(tocPath))
		for _, h := range handlers {
			s.recorder.IncIncluderRun(spec.Name)
			next, err := h.Include(ctx, draft, opts, rc.path)
			if err != nil {
				return nil, errors.WrapError(err, errors.CategoryIncluder, fmt.Sprintf("includer %q failed for %s", spec.Name, tocPath)).
					Fatal().
					WithContext(errorContextPath, rc.path).
					Build()
			}
			if next != nil {
				draft = next
			}
		}
	}
	return draft, nil
}
