package generic

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tocbuilder/internal/toc"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func TestIncludeBuildsTreeFromDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"docs/api/page10.md":          "# Ten",
		"docs/api/page2.md":           "---\ntitle: Two\n---\n# Ignored heading\n",
		"docs/api/getting-started.md": "plain text",
		"docs/api/.hidden.md":         "# Hidden",
		"docs/api/notes.txt":          "skip",
		"docs/api/guides/index.md":    "# Guides",
		"docs/api/guides/first.md":    "## First guide",
		"docs/api/empty/readme.txt":   "nothing",
	})
	inc := New(fs, nil)

	draft, err := inc.Include(context.Background(), &toc.RawToc{}, toc.IncluderOptions{
		"path":  "docs/api/toc.yaml",
		"title": "API",
	}, "docs/toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, toc.TextItems{{Text: "API"}}, draft.Title)

	require.Len(t, draft.Items, 4)
	assert.Equal(t, "Getting Started", draft.Items[0].Name)
	assert.Equal(t, "getting-started.md", draft.Items[0].Href)

	guides := draft.Items[1]
	assert.Equal(t, "Guides", guides.Name)
	assert.Equal(t, "guides/index.md", guides.Href)
	require.Len(t, guides.Items, 1)
	assert.Equal(t, "First guide", guides.Items[0].Name)
	assert.Equal(t, "guides/first.md", guides.Items[0].Href)

	// natural order: page2 before page10
	assert.Equal(t, "Two", draft.Items[2].Name)
	assert.Equal(t, "Ten", draft.Items[3].Name)
}

func TestIncludeWithInputAndWithoutAutotitle(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"docs/content/my_page.md": "# Heading",
	})
	draft := &toc.RawToc{Items: []*toc.Item{{Name: "existing"}}}

	out, err := New(fs, nil).Include(context.Background(), draft, toc.IncluderOptions{
		"path":      "docs/gen/toc.yaml",
		"input":     "../content",
		"autotitle": false,
	}, "docs/toc.yaml")
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "existing", out.Items[0].Name)
	assert.Equal(t, "My Page", out.Items[1].Name)
	assert.Equal(t, "../content/my_page.md", out.Items[1].Href)
}

func TestIncludeMissingInput(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), nil).Include(context.Background(), &toc.RawToc{}, toc.IncluderOptions{
		"path": "nowhere/toc.yaml",
	}, "toc.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}

func TestRegisteredIncluderResolvesThroughService(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml":       "items:\n  - name: Reference\n    include:\n      path: ref\n      includers:\n        - name: generic\n",
		"ref/a.md":       "# Alpha",
		"ref/b/index.md": "# Beta",
	})
	svc, err := toc.NewService(fs, toc.Options{})
	require.NoError(t, err)
	Register(svc.Hooks(), fs, nil)

	resolved, err := svc.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	require.Len(t, resolved.Items, 1)
	ref := resolved.Items[0]
	require.Len(t, ref.Items, 2)
	assert.Equal(t, "ref/a.md", ref.Items[0].Href)
	assert.Equal(t, "Beta", ref.Items[1].Name)
	assert.Equal(t, "ref/b/index.md", ref.Items[1].Href)
	assert.Equal(t, []string{"ref/a.md", "ref/b/index.md"}, svc.Entries())
}
