package build

import (
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/maruel/natural"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/tocbuilder/internal/logfields"
	"git.home.luguber.info/inful/tocbuilder/internal/toc"
)

// discover lists the top-level tocs: the configured roots, or every toc
// file in the workspace. Hidden directories and the output directory are
// skipped. The list is in natural order.
func (s *Session) discover() ([]string, error) {
	if len(s.cfg.Toc.Roots) > 0 {
		roots := make([]string, 0, len(s.cfg.Toc.Roots))
		for _, r := range s.cfg.Toc.Roots {
			r = toc.NormalizePath(r)
			if path.Base(r) != s.cfg.Toc.Filename {
				r = path.Join(r, s.cfg.Toc.Filename)
			}
			roots = append(roots, r)
		}
		return roots, nil
	}

	skip := map[string]bool{}
	for _, p := range []string{s.cfg.Output, s.cfg.Meta.Path} {
		if rel, ok := relInside(s.cfg.Input, p); ok && rel != "." {
			skip[rel] = true
		}
	}

	var roots []string
	err := afero.Walk(s.ws.Fs(), ".", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		p = filepath.ToSlash(p)
		if info.IsDir() {
			if p != "." && (strings.HasPrefix(info.Name(), ".") || skip[p]) {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == s.cfg.Toc.Filename {
			roots = append(roots, toc.NormalizePath(p))
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to discover tocs").Build()
	}
	slices.SortFunc(roots, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
	s.logger.Debug("Discovered tocs", logfields.Count(len(roots)))
	return roots, nil
}
