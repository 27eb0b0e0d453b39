// Package generic implements the "generic" includer: it builds a toc from the
// Markdown files of a directory tree.
package generic

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/tocbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/tocbuilder/internal/logfields"
	"git.home.luguber.info/inful/tocbuilder/internal/markdown"
	"git.home.luguber.info/inful/tocbuilder/internal/toc"
)

// Name is the includer name used in toc files.
const Name = "generic"

const indexPage = "index"

// Includer scans a directory for content pages.
//
// Options:
//
//	input      directory to scan, relative to the generated toc (default ".")
//	autotitle  derive names from frontmatter titles and first headings (default true)
//	extension  page extension (default ".md")
//	title      title for the generated toc when it has none
type Includer struct {
	fs     afero.Fs
	logger *slog.Logger
}

// New returns a generic includer reading from fs.
func New(fs afero.Fs, logger *slog.Logger) *Includer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Includer{fs: fs, logger: logger}
}

// Register adds the includer to hooks under Name.
func Register(hooks *toc.Hooks, fs afero.Fs, logger *slog.Logger) {
	hooks.RegisterIncluder(Name, New(fs, logger))
}

type scan struct {
	autotitle bool
	ext       string
	tocDir    string
}

// Include implements toc.Includer.
func (g *Includer) Include(ctx context.Context, draft *toc.RawToc, options toc.IncluderOptions, _ string) (*toc.RawToc, error) {
	tocPath := options.Path()
	if tocPath == "" {
		return nil, errors.IncluderError("generic includer requires a path").Build()
	}
	s := scan{
		autotitle: options.Bool("autotitle", true),
		ext:       options.String("extension", ".md"),
		tocDir:    path.Dir(tocPath),
	}
	if !strings.HasPrefix(s.ext, ".") {
		s.ext = "." + s.ext
	}
	input := path.Clean(options.String("input", "."))
	root := path.Join(s.tocDir, input)

	info, err := g.fs.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.IncluderError("generic includer input is not a directory: "+root).
			WithCause(err).
			WithContext("path", tocPath).
			Build()
	}
	items, _, err := g.scanDir(ctx, s, root)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("Generated toc items", logfields.Path(tocPath), logfields.Count(len(items)))

	if len(draft.Title) == 0 {
		if title := options.String("title", ""); title != "" {
			draft.Title = toc.TextItems{{Text: title}}
		}
	}
	draft.Items = append(draft.Items, items...)
	return draft, nil
}

// scanDir returns the items for the pages below dir and, separately, the
// directory's index page item if it has one.
func (g *Includer) scanDir(ctx context.Context, s scan, dir string) ([]*toc.Item, *toc.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	entries, err := afero.ReadDir(g.fs, dir)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.CategoryFileSystem, "unable to read directory").
			WithContext("path", dir).
			Build()
	}
	sort.Slice(entries, func(i, j int) bool {
		return natural.Less(entries[i].Name(), entries[j].Name())
	})

	var (
		items []*toc.Item
		index *toc.Item
	)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		full := path.Join(dir, name)
		if e.IsDir() {
			children, dirIndex, err := g.scanDir(ctx, s, full)
			if err != nil {
				return nil, nil, err
			}
			if len(children) == 0 && dirIndex == nil {
				continue
			}
			item := &toc.Item{Name: g.titleize(name), Items: children}
			if dirIndex != nil {
				item.Name = dirIndex.Name
				item.Href = dirIndex.Href
			}
			items = append(items, item)
			continue
		}
		if !e.Mode().IsRegular() || path.Ext(name) != s.ext {
			continue
		}
		stem := strings.TrimSuffix(name, s.ext)
		item := &toc.Item{
			Name: g.pageTitle(s, full, stem),
			Href: relative(s.tocDir, full),
		}
		if stem == indexPage {
			index = item
			continue
		}
		items = append(items, item)
	}
	return items, index, nil
}

func (g *Includer) pageTitle(s scan, file, stem string) string {
	if s.autotitle {
		if data, err := afero.ReadFile(g.fs, file); err == nil {
			doc, perr := frontmatter.Parse(data)
			if perr != nil {
				g.logger.Warn("Unable to parse frontmatter", logfields.File(file), logfields.Error(perr))
				doc = frontmatter.Document{Body: data}
			}
			if title := doc.Title(); title != "" {
				return title
			}
			if heading := markdown.FirstHeading(doc.Body); heading != "" {
				return heading
			}
		} else if !os.IsNotExist(err) {
			g.logger.Warn("Unable to read page", logfields.File(file), logfields.Error(err))
		}
	}
	return g.titleize(stem)
}

// titleize turns a file or directory name into a display name.
func (g *Includer) titleize(name string) string {
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	// Casers are stateful; includers run concurrently.
	return cases.Title(language.Und).String(strings.TrimSpace(name))
}

func relative(dir, file string) string {
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(file))
	if err != nil {
		return file
	}
	return filepath.ToSlash(rel)
}
