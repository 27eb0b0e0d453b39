package toc

import (
	"context"
	"fmt"
	"path"
	"strings"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/tocbuilder/internal/templating"
)

// resolve runs the resolution pipeline over raw. The steps are ordered:
// include paths must be rebased before includes are processed, and hrefs are
// rebased and normalized only once the included items are spliced in.
func (s *Service) resolve(ctx context.Context, rc resolveContext, raw *RawToc) (*Toc, error) {
	vars, err := s.vars.Vars(ctx, rc.path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "unable to load variables").
			WithContext(errorContextPath, rc.path).
			Build()
	}
	rc.vars = vars

	toc, err := s.resolveFields(ctx, rc, raw)
	if err != nil {
		return nil, err
	}
	if toc.Items, err = s.filterItems(ctx, rc, toc.Items); err != nil {
		return nil, err
	}
	if err := s.templateFields(ctx, rc, toc); err != nil {
		return nil, err
	}
	if err := rebaseIncludes(rc, toc); err != nil {
		return nil, err
	}
	if err := s.processItems(ctx, rc, toc); err != nil {
		return nil, err
	}
	rebaseItems(rc, toc)
	normalizeItems(toc, s.opts.DefaultExtension)
	toc.Path = rc.path
	return toc, nil
}

// resolveFields picks the first matching title and label alternative.
func (s *Service) resolveFields(ctx context.Context, rc resolveContext, raw *RawToc) (*Toc, error) {
	title, err := s.pickText(ctx, rc, raw.Title)
	if err != nil {
		return nil, err
	}
	label, err := s.pickText(ctx, rc, raw.Label)
	if err != nil {
		return nil, err
	}
	return &Toc{
		Title:      title,
		Label:      label,
		Stage:      raw.Stage,
		Href:       raw.Href,
		Navigation: raw.Navigation,
		Items:      raw.Items,
		Extra:      raw.Extra,
	}, nil
}

func (s *Service) pickText(ctx context.Context, rc resolveContext, items TextItems) (string, error) {
	for _, alt := range items {
		ok, err := s.condition(ctx, rc, alt.When)
		if err != nil {
			return "", err
		}
		if ok {
			return alt.Text, nil
		}
	}
	return "", nil
}

// condition evaluates a "when" value. Absent conditions hold.
func (s *Service) condition(ctx context.Context, rc resolveContext, when any) (bool, error) {
	switch v := when.(type) {
	case nil:
		return true, nil
	case bool:
		return v, nil
	case string:
		ok, err := s.evaluator.Evaluate(ctx, v, rc.vars)
		if err != nil {
			return false, errors.WrapError(err, errors.CategoryTemplating, "unable to evaluate condition").
				WithContext(errorContextPath, rc.path).
				WithContext("when", v).
				Build()
		}
		return ok, nil
	default:
		return false, errors.TemplatingError(fmt.Sprintf("unsupported condition %v", when)).
			WithContext(errorContextPath, rc.path).
			Build()
	}
}

// filterItems drops items whose condition fails and, optionally, hidden items.
func (s *Service) filterItems(ctx context.Context, rc resolveContext, items []*Item) ([]*Item, error) {
	if !s.opts.ResolveConditions && !s.opts.RemoveHiddenItems {
		return items, nil
	}
	return WalkItems(items, func(item *Item) ([]*Item, error) {
		if s.opts.ResolveConditions {
			ok, err := s.condition(ctx, rc, item.When)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			item.When = nil
		}
		if s.opts.RemoveHiddenItems && item.Hidden {
			return nil, nil
		}
		return keep(item), nil
	})
}

// templateFields interpolates the toc's text fields and its items' names
// and hrefs.
func (s *Service) templateFields(ctx context.Context, rc resolveContext, toc *Toc) error {
	opts := templating.Options{
		Substitutions: s.opts.ResolveSubstitutions,
		Conditions:    s.opts.ResolveConditions,
	}
	if !opts.Substitutions && !opts.Conditions {
		return nil
	}
	interpolate := func(text string) (string, error) {
		if !strings.Contains(text, "{") {
			return text, nil
		}
		out, err := s.interpolator.Interpolate(ctx, text, rc.vars, rc.path, opts)
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryTemplating, "unable to interpolate").
				WithContext(errorContextPath, rc.path).
				Build()
		}
		return out, nil
	}

	var err error
	if toc.Title, err = interpolate(toc.Title); err != nil {
		return err
	}
	if toc.Label, err = interpolate(toc.Label); err != nil {
		return err
	}
	if toc.Href, err = interpolate(toc.Href); err != nil {
		return err
	}
	if toc.Navigation, err = interpolateValue(toc.Navigation, interpolate); err != nil {
		return err
	}
	return VisitItems(toc.Items, func(item *Item) error {
		if item.Name, err = interpolate(item.Name); err != nil {
			return err
		}
		item.Href, err = interpolate(item.Href)
		return err
	})
}

// interpolateValue applies fn to every string inside a decoded YAML value.
func interpolateValue(v any, fn func(string) (string, error)) (any, error) {
	switch x := v.(type) {
	case string:
		return fn(x)
	case []any:
		for i := range x {
			out, err := interpolateValue(x[i], fn)
			if err != nil {
				return nil, err
			}
			x[i] = out
		}
		return x, nil
	case map[string]any:
		for k := range x {
			out, err := interpolateValue(x[k], fn)
			if err != nil {
				return nil, err
			}
			x[k] = out
		}
		return x, nil
	default:
		return v, nil
	}
}

// rebaseIncludes anchors include paths to the directory the toc's items are
// relative to. Paths starting with "/" are project-root relative.
func rebaseIncludes(rc resolveContext, toc *Toc) error {
	dir := rc.tocDir()
	return VisitItems(toc.Items, func(item *Item) error {
		if item.Include == nil {
			return nil
		}
		p := strings.TrimSpace(item.Include.Path)
		if p == "" {
			return errors.IncludeError("include path is required").
				WithContext(errorContextPath, rc.path).
				WithContext("item", item.Name).
				Build()
		}
		if strings.HasPrefix(p, "/") {
			item.Include.Path = NormalizePath(p)
		} else {
			item.Include.Path = NormalizePath(path.Join(dir, p))
		}
		if escapesRoot(item.Include.Path) {
			return outsideRoot(rc, item.Include.Path)
		}
		return nil
	})
}

func outsideRoot(rc resolveContext, p string) error {
	return errors.IncludeError("include path "+p+" is outside the project root").
		WithContext(errorContextPath, rc.path).
		Build()
}

// rebaseItems rewrites hrefs of a linked toc from its own directory to the
// directory it is served from.
func rebaseItems(rc resolveContext, toc *Toc) {
	if rc.mode != ModeLink {
		return
	}
	from, to := rc.tocDir(), rc.serveDir()
	toc.Href = rebaseHref(toc.Href, from, to)
	convertItems(toc.Items, from, to)
}

func convertItems(items []*Item, from, to string) {
	if from == to {
		return
	}
	_ = VisitItems(items, func(item *Item) error {
		item.Href = rebaseHref(item.Href, from, to)
		return nil
	})
}

func normalizeItems(toc *Toc, ext string) {
	toc.Href = normalizeHref(toc.Href, ext)
	_ = VisitItems(toc.Items, func(item *Item) error {
		item.Href = normalizeHref(item.Href, ext)
		return nil
	})
}
