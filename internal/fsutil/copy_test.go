package fsutil

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	}
}

func TestCopyDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"module/toc.yaml":       "items: []",
		"module/page.md":        "# Page",
		"module/nested/deep.md": "# Deep",
		"module/.git/HEAD":      "ref",
	})

	c, err := NewCopier(fs, []string{".git/**", ".git"})
	require.NoError(t, err)

	copied, err := c.CopyDir("module", "docs", "toc.yaml")
	require.NoError(t, err)

	var targets []string
	for _, f := range copied {
		targets = append(targets, f.To)
	}
	assert.ElementsMatch(t, []string{"docs/page.md", "docs/nested/deep.md"}, targets)

	data, err := afero.ReadFile(fs, "docs/nested/deep.md")
	require.NoError(t, err)
	assert.Equal(t, "# Deep", string(data))

	exists, err := afero.Exists(fs, "docs/toc.yaml")
	require.NoError(t, err)
	assert.False(t, exists, "per-call exclude keeps the included toc out of the merge base")
}

func TestCopyDirIsRepeatable(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"a/x.md": "x"})

	c, err := NewCopier(fs, nil)
	require.NoError(t, err)

	first, err := c.CopyDir("a", "b")
	require.NoError(t, err)
	second, err := c.CopyDir("a", "b")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCopyDirSkipsDestinationInsideSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"root/a.md":     "a",
		"root/sub/b.md": "b",
	})

	c, err := NewCopier(fs, nil)
	require.NoError(t, err)

	copied, err := c.CopyDir("root", "root/sub")
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.Equal(t, CopiedFile{From: "root/a.md", To: "root/sub/a.md"}, copied[0])
}

func TestCopyDirSameDirectoryIsNoop(t *testing.T) {
	c, err := NewCopier(afero.NewMemMapFs(), nil)
	require.NoError(t, err)
	copied, err := c.CopyDir("a/./b", "a/b")
	require.NoError(t, err)
	assert.Empty(t, copied)
}

func TestNewCopierRejectsBadPattern(t *testing.T) {
	_, err := NewCopier(afero.NewMemMapFs(), []string{"[unterminated"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unterminated")
}
