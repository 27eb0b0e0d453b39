package presets

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
)

func TestVarsMergeFromRootDown(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "presets.yaml", []byte("default:\n  lang: en\n  product: Docs\n  level: root\ninternal:\n  audience: staff\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "guide/presets.yaml", []byte("default:\n  level: guide\ninternal:\n  level: guide-internal\n"), 0o644))

	p := NewProvider(fs, Options{Preset: "internal", Values: map[string]any{"lang": "ru"}})

	vars, err := p.Vars(context.Background(), "guide/sub/toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ru", vars["lang"])
	assert.Equal(t, "Docs", vars["product"])
	assert.Equal(t, "guide-internal", vars["level"])
	assert.Equal(t, "staff", vars["audience"])

	root, err := p.Vars(context.Background(), "toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, "staff", root["audience"])
	assert.Equal(t, "root", root["level"])
}

func TestVarsWithoutPresetFiles(t *testing.T) {
	p := NewProvider(afero.NewMemMapFs(), Options{})
	vars, err := p.Vars(context.Background(), "a/b/toc.yaml")
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestVarsInvalidFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "presets.yaml", []byte("default: [not, a, map]\n"), 0o644))
	p := NewProvider(fs, Options{})
	_, err := p.Vars(context.Background(), "toc.yaml")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestResetRereadsFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "presets.yaml", []byte("default:\n  v: 1\n"), 0o644))
	p := NewProvider(fs, Options{})
	vars, err := p.Vars(context.Background(), "toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1, vars["v"])

	require.NoError(t, afero.WriteFile(fs, "presets.yaml", []byte("default:\n  v: 2\n"), 0o644))
	vars, _ = p.Vars(context.Background(), "toc.yaml")
	assert.Equal(t, 1, vars["v"])
	p.Reset()
	vars, err = p.Vars(context.Background(), "toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, vars["v"])
}
