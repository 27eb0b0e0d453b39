package toc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
)

// countingFs counts Open calls per path.
type countingFs struct {
	afero.Fs
	mu    sync.Mutex
	opens map[string]int
}

func newCountingFs() *countingFs {
	return &countingFs{Fs: afero.NewMemMapFs(), opens: map[string]int{}}
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.Fs.Open(name)
}

func (c *countingFs) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

// slowFs delays every Open so sibling includes overlap.
type slowFs struct {
	afero.Fs
	delay time.Duration
}

func (s slowFs) Open(name string) (afero.File, error) {
	time.Sleep(s.delay)
	return s.Fs.Open(name)
}

type recordingMeta struct {
	mu         sync.Mutex
	sources    map[string]string
	restricted map[string][]string
}

func newRecordingMeta() *recordingMeta {
	return &recordingMeta{sources: map[string]string{}, restricted: map[string][]string{}}
}

func (m *recordingMeta) RecordSourcePath(_ context.Context, target, origin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[target] = origin
	return nil
}

func (m *recordingMeta) RecordRestrictedAccess(_ context.Context, file string, access []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restricted[file] = access
	return nil
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func newTestService(t *testing.T, fs afero.Fs, opts Options, options ...ServiceOption) *Service {
	t.Helper()
	s, err := NewService(fs, opts, options...)
	require.NoError(t, err)
	return s
}

func TestLoadLinkInclude(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml":     "items:\n  - name: X\n    include: {path: sub/toc.yaml, mode: link}\n",
		"sub/toc.yaml": "items:\n  - name: Y\n    href: y.md\n",
	})
	s := newTestService(t, fs, Options{})

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	require.Len(t, toc.Items, 1)
	x := toc.Items[0]
	assert.Equal(t, "X", x.Name)
	assert.Nil(t, x.Include)
	require.Len(t, x.Items, 1)
	assert.Equal(t, "Y", x.Items[0].Name)
	assert.Equal(t, "sub/y.md", x.Items[0].Href)
	assert.Equal(t, []string{"sub/y.md"}, s.Entries())
}

func TestLoadLinkIncludeFromSiblingDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"x/toc.yaml":     "items:\n  - include: {path: ../a/b/toc.yaml, mode: link}\n",
		"a/b/toc.yaml":   "items:\n  - name: C\n    href: c.md\n  - include: {path: d/toc.yaml}\n",
		"a/b/d/toc.yaml": "items:\n  - name: D\n    href: e.md\n",
	})
	s := newTestService(t, fs, Options{})

	toc, err := s.Load(context.Background(), "x/toc.yaml")
	require.NoError(t, err)
	require.Len(t, toc.Items, 2)
	assert.Equal(t, "../a/b/c.md", toc.Items[0].Href)
	assert.Equal(t, "../a/b/d/e.md", toc.Items[1].Href)
	assert.Equal(t, []string{"a/b/c.md", "a/b/d/e.md"}, s.Entries())
}

func TestLoadRootMergeCopiesWithoutRebase(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"docs/toc.yaml":            "items:\n  - name: Module\n    include: {path: mod/toc.yaml}\n",
		"docs/mod/toc.yaml":        "items:\n  - name: P\n    href: p.md\n  - include: {path: nested/toc.yaml}\n",
		"docs/mod/p.md":            "# P",
		"docs/mod/nested/toc.yaml": "items:\n  - name: Q\n    href: q.md\n",
		"docs/mod/nested/q.md":     "# Q",
	})
	meta := newRecordingMeta()
	s := newTestService(t, fs, Options{}, WithMeta(meta))

	toc, err := s.Load(context.Background(), "docs/toc.yaml")
	require.NoError(t, err)
	require.Len(t, toc.Items, 1)
	mod := toc.Items[0]
	require.Len(t, mod.Items, 2)
	assert.Equal(t, "p.md", mod.Items[0].Href)
	assert.Equal(t, "q.md", mod.Items[1].Href)

	data, err := afero.ReadFile(fs, "docs/p.md")
	require.NoError(t, err)
	assert.Equal(t, "# P", string(data))
	ok, err := afero.Exists(fs, "docs/q.md")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "docs/mod/p.md", meta.sources["docs/p.md"])

	root, err := afero.ReadFile(fs, "docs/toc.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(root), "Module", "the including toc must not be overwritten")
	assert.Equal(t, []string{"docs/p.md", "docs/q.md"}, s.Entries())
}

func TestLoadMergeUsesNearestBase(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml":     "items:\n  - include: {path: a/toc.yaml, mode: link}\n",
		"a/toc.yaml":   "items:\n  - include: {path: b/toc.yaml, mode: merge}\n",
		"a/b/toc.yaml": "items:\n  - name: B\n    href: b.md\n",
		"a/b/b.md":     "b",
	})
	s := newTestService(t, fs, Options{})

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	require.Len(t, toc.Items, 1)
	assert.Equal(t, "a/b.md", toc.Items[0].Href)
	ok, err := afero.Exists(fs, "a/b.md")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlatAndNamedIncludes(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml": `items:
  - name: first
    href: first.md
  - include: {path: inc/toc.yaml, mode: link}
  - name: Named
    items:
      - name: own
        href: own.md
    include: {path: inc/toc.yaml, mode: link}
  - name: last
    href: last.md
`,
		"inc/toc.yaml": "items:\n  - name: I1\n    href: i1.md\n  - name: I2\n    href: i2.md\n",
	})
	s := newTestService(t, fs, Options{})

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	var top []string
	for _, item := range toc.Items {
		top = append(top, item.Name)
	}
	assert.Equal(t, []string{"first", "I1", "I2", "Named", "last"}, top)
	named := toc.Items[3]
	require.Len(t, named.Items, 3)
	assert.Equal(t, "own", named.Items[0].Name)
	assert.Equal(t, "inc/i1.md", named.Items[1].Href)
	assert.NotEqual(t, toc.Items[1].ID, named.Items[1].ID, "spliced copies get distinct ids")
}

func TestIncludedTocIsReadOnce(t *testing.T) {
	fs := newCountingFs()
	writeFiles(t, fs, map[string]string{
		"a/toc.yaml":      "items:\n  - include: {path: ../shared/toc.yaml, mode: link}\n",
		"b/toc.yaml":      "items:\n  - include: {path: ../shared/toc.yaml, mode: link}\n  - include: {path: ../shared/toc.yaml, mode: link}\n",
		"shared/toc.yaml": "items:\n  - name: S\n    href: s.md\n",
	})
	s := newTestService(t, fs, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for range 3 {
		for _, p := range []string{"a/toc.yaml", "b/toc.yaml"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Load(context.Background(), p)
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fs.count("shared/toc.yaml"))
	assert.Equal(t, 1, fs.count("a/toc.yaml"))
	assert.Equal(t, 1, fs.count("b/toc.yaml"))

	b, _ := s.Toc("b/toc.yaml")
	require.Len(t, b.Items, 2)
	assert.Equal(t, "../shared/s.md", b.Items[0].Href)
}

func TestMergeCopyHappensOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"docs/toc.yaml":     "items:\n  - name: A\n    include: {path: mod/toc.yaml}\n  - name: B\n    include: {path: mod/toc.yaml}\n",
		"docs/mod/toc.yaml": "items:\n  - name: P\n    href: p.md\n",
		"docs/mod/p.md":     "p",
	})
	var calls int
	var mu sync.Mutex
	meta := &countingMeta{onSource: func() { mu.Lock(); calls++; mu.Unlock() }}
	s := newTestService(t, fs, Options{}, WithMeta(meta))

	toc, err := s.Load(context.Background(), "docs/toc.yaml")
	require.NoError(t, err)
	require.Len(t, toc.Items, 2)
	assert.Equal(t, "p.md", toc.Items[1].Items[0].Href)
	assert.Equal(t, 1, calls)
}

type countingMeta struct {
	onSource func()
}

func (m *countingMeta) RecordSourcePath(context.Context, string, string) error {
	m.onSource()
	return nil
}

func (m *countingMeta) RecordRestrictedAccess(context.Context, string, []string) error { return nil }

func TestIncludersGenerateContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml": `items:
  - name: Generated
    include:
      path: gen
      includers:
        - name: pages
          prefix: P
        - name: append
`,
	})
	s := newTestService(t, fs, Options{})
	var gotOpts IncluderOptions
	var gotFrom string
	s.Hooks().RegisterIncluder("pages", IncluderFunc(func(_ context.Context, draft *RawToc, opts IncluderOptions, from string) (*RawToc, error) {
		gotOpts, gotFrom = opts, from
		draft.Items = append(draft.Items, &Item{Name: opts.String("prefix", "") + "1", Href: "one.md"})
		return draft, nil
	}))
	s.Hooks().RegisterIncluder("append", IncluderFunc(func(_ context.Context, draft *RawToc, _ IncluderOptions, _ string) (*RawToc, error) {
		draft.Items = append(draft.Items, &Item{Name: "more", Href: "sub/"})
		return draft, nil
	}))

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	require.Len(t, toc.Items, 1)
	gen := toc.Items[0]
	require.Len(t, gen.Items, 2)
	assert.Equal(t, "P1", gen.Items[0].Name)
	assert.Equal(t, "gen/one.md", gen.Items[0].Href)
	assert.Equal(t, "gen/sub/index.yaml", gen.Items[1].Href)
	assert.Equal(t, "gen/toc.yaml", gotOpts.Path())
	assert.Equal(t, "toc.yaml", gotFrom)
}

func TestUnregisteredIncluderIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml": "items:\n  - include: {path: gen, includers: [{name: missing-one}]}\n",
	})
	s := newTestService(t, fs, Options{})

	_, err := s.Load(context.Background(), "toc.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-one")
	assert.True(t, errors.IsFatal(err))
	assert.True(t, errors.HasCategory(err, errors.CategoryIncluder))
}

func TestInvalidIncludeDescriptors(t *testing.T) {
	cases := map[string]string{
		"missing path":       "items:\n  - include: {mode: link}\n",
		"includers not list": "items:\n  - include: {path: gen, includers: pages}\n",
		"empty includers":    "items:\n  - include: {path: gen, includers: []}\n",
		"includers merge":    "items:\n  - include: {path: gen, mode: merge, includers: [{name: x}]}\n",
		"bad mode":           "items:\n  - include: {path: gen/toc.yaml, mode: sideways}\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFiles(t, fs, map[string]string{"toc.yaml": content})
			s := newTestService(t, fs, Options{})
			s.Hooks().RegisterIncluder("x", IncluderFunc(func(_ context.Context, d *RawToc, _ IncluderOptions, _ string) (*RawToc, error) {
				return d, nil
			}))
			_, err := s.Load(context.Background(), "toc.yaml")
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err), err.Error())
		})
	}
}

func TestCircularInclude(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"a/toc.yaml": "items:\n  - include: {path: ../b/toc.yaml, mode: link}\n",
		"b/toc.yaml": "items:\n  - include: {path: ../a/toc.yaml, mode: link}\n",
	})
	s := newTestService(t, fs, Options{})

	_, err := s.Load(context.Background(), "a/toc.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular include a/toc.yaml -> b/toc.yaml -> a/toc.yaml")
}

func TestCircularSiblingIncludes(t *testing.T) {
	tests := map[string]map[string]string{
		"link": {
			"toc.yaml":   "items:\n  - include: {path: p/toc.yaml, mode: link}\n  - include: {path: q/toc.yaml, mode: link}\n",
			"p/toc.yaml": "items:\n  - include: {path: ../q/toc.yaml, mode: link}\n",
			"q/toc.yaml": "items:\n  - include: {path: ../p/toc.yaml, mode: link}\n",
		},
		"merge": {
			"toc.yaml":   "items:\n  - include: {path: p/toc.yaml, mode: merge}\n  - include: {path: q/toc.yaml, mode: merge}\n",
			"p/toc.yaml": "items:\n  - include: {path: /q/toc.yaml, mode: merge}\n",
			"q/toc.yaml": "items:\n  - include: {path: /p/toc.yaml, mode: merge}\n",
		},
	}
	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			mem := afero.NewMemMapFs()
			writeFiles(t, mem, files)
			s := newTestService(t, slowFs{Fs: mem, delay: 20 * time.Millisecond}, Options{})

			done := make(chan error, 1)
			go func() {
				_, err := s.Load(context.Background(), "toc.yaml")
				done <- err
			}()
			select {
			case err := <-done:
				require.Error(t, err)
				assert.Regexp(t, `circular include .*(p/toc\.yaml -> q/toc\.yaml -> p/toc\.yaml|q/toc\.yaml -> p/toc\.yaml -> q/toc\.yaml)`, err.Error())
				assert.True(t, errors.IsFatal(err))
			case <-time.After(5 * time.Second):
				t.Fatal("load did not return")
			}
			assert.Empty(t, s.waits.nodes)
		})
	}
}

func TestIncludeOutsideProjectRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"docs/toc.yaml": "items:\n  - include: {path: ../../x/toc.yaml, mode: link}\n",
	})
	s := newTestService(t, fs, Options{})

	_, err := s.Load(context.Background(), "docs/toc.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include path ../x/toc.yaml is outside the project root")
	assert.True(t, errors.IsFatal(err))
	assert.True(t, errors.HasCategory(err, errors.CategoryInclude))
}

func TestMissingIncludeReportsParent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml": "items:\n  - include: {path: nope/toc.yaml, mode: link}\n",
	})
	s := newTestService(t, fs, Options{})

	_, err := s.Load(context.Background(), "toc.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to resolve toc nope/toc.yaml (included from toc.yaml)")

	// failures are cached too
	_, again := s.Load(context.Background(), "toc.yaml")
	assert.Equal(t, err, again)
}

func TestStageSkip(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"root/toc.yaml": "stage: draft\nitems:\n  - name: A\n    href: a.md\n",
		"toc.yaml":      "items:\n  - include: {path: skip/toc.yaml, mode: link}\n  - name: Named\n    include: {path: skip/toc.yaml, mode: link}\n",
		"skip/toc.yaml": "stage: draft\nitems:\n  - name: S\n    href: s.md\n",
	})
	s := newTestService(t, fs, Options{IgnoreStages: []string{"draft"}})

	root, err := s.Load(context.Background(), "root/toc.yaml")
	require.NoError(t, err)
	assert.Nil(t, root)

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	require.Len(t, toc.Items, 1)
	assert.Equal(t, "Named", toc.Items[0].Name)
	assert.Empty(t, toc.Items[0].Items)
	assert.Empty(t, s.Entries())
}

func TestConditionsAndHiddenItems(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml": `title:
  - text: English
    when: lang == 'en'
  - text: Russian
    when: lang == 'ru'
  - text: Fallback
label: Plain
items:
  - name: "{{ product }} guide"
    href: guide.md
  - name: only-en
    href: en.md
    when: lang == 'en'
  - name: hidden
    href: hidden.md
    hidden: true
    when: lang == 'ru'
  - name: parent
    when: lang == 'en'
    items:
      - name: child
        href: child.md
`,
	})
	s := newTestService(t, fs, Options{
		ResolveConditions:    true,
		ResolveSubstitutions: true,
		RemoveHiddenItems:    true,
	}, WithVars(StaticVars{"lang": "ru", "product": "Cloud"}))

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Russian", toc.Title)
	assert.Equal(t, "Plain", toc.Label)
	assert.Equal(t, []string{"Cloud guide"}, names(toc.Items))
	assert.Equal(t, []string{"guide.md"}, s.Entries())
}

func TestHiddenItemsKeptByDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml": "title: T\nitems:\n  - name: h\n    href: h\n    hidden: true\n    when: nonsense ==\n",
	})
	s := newTestService(t, fs, Options{})

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, "T", toc.Title)
	require.Len(t, toc.Items, 1)
	assert.True(t, toc.Items[0].Hidden)
	assert.Equal(t, "h.md", toc.Items[0].Href)
}

func TestLoadIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml":     "items:\n  - name: A\n    href: a.md\n  - include: {path: sub/toc.yaml, mode: link}\n",
		"sub/toc.yaml": "items:\n  - name: B\n    href: b/\n",
	})
	s := newTestService(t, fs, Options{})
	ctx := context.Background()

	first, err := s.Load(ctx, "toc.yaml")
	require.NoError(t, err)
	second, err := s.Load(ctx, "./toc.yaml")
	require.NoError(t, err)
	assert.Same(t, first, second)

	d1, err := s.Dump(ctx, "toc.yaml")
	require.NoError(t, err)
	s.Reset()
	assert.Empty(t, s.Tocs())
	d2, err := s.Dump(ctx, "toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, string(d1), string(d2), "ids and hrefs are stable across runs")
	assert.Contains(t, string(d2), "href: sub/b/index.yaml")
}

func TestForFindsNearestToc(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"docs/toc.yaml":     "items:\n  - name: A\n    href: a.md\n",
		"docs/sub/toc.yaml": "items:\n  - name: B\n    href: b.md\n",
	})
	s := newTestService(t, fs, Options{})
	ctx := context.Background()
	_, err := s.Load(ctx, "docs/toc.yaml")
	require.NoError(t, err)
	_, err = s.Load(ctx, "docs/sub/toc.yaml")
	require.NoError(t, err)

	owner, err := s.For("docs/sub/deep/page.md")
	require.NoError(t, err)
	assert.Equal(t, "docs/sub/toc.yaml", owner)
	owner, err = s.For("docs/other/page.md")
	require.NoError(t, err)
	assert.Equal(t, "docs/toc.yaml", owner)

	_, err = s.For("elsewhere/page.md")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Equal(t, []string{"docs/sub/toc.yaml", "docs/toc.yaml"}, s.Tocs())
}

func TestDumpAppliesTransformsToCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml": "title: Docs\nitems:\n  - name: A\n    href: a.md\n    id: fixed\n",
	})
	s := newTestService(t, fs, Options{})
	s.Hooks().OnDump(func(_ context.Context, toc *Toc, _ string) (*Toc, error) {
		toc.Title = strings.ToUpper(toc.Title)
		return toc, nil
	})

	data, err := s.Dump(context.Background(), "toc.yaml")
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, "DOCS", out["title"])

	cached, ok := s.Toc("toc.yaml")
	require.True(t, ok)
	assert.Equal(t, "Docs", cached.Title)
	assert.Equal(t, "fixed", cached.Items[0].ID)
}

func TestObserversReceiveCopies(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml": "items:\n  - name: A\n    href: a.md\n    restricted-access: admin\n",
	})
	meta := newRecordingMeta()
	s := newTestService(t, fs, Options{}, WithMeta(meta))
	var order []string
	var mu sync.Mutex
	s.Hooks().OnLoaded(func(_ context.Context, toc *Toc, path string) error {
		mu.Lock()
		order = append(order, "loaded:"+path)
		mu.Unlock()
		toc.Items[0].Name = "mutated"
		return fmt.Errorf("observer failures are only logged")
	})
	s.Hooks().OnResolved(func(_ context.Context, toc *Toc, path string) error {
		mu.Lock()
		order = append(order, "resolved:"+path)
		mu.Unlock()
		return nil
	})

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	assert.Equal(t, "A", toc.Items[0].Name)
	assert.Equal(t, []string{"loaded:toc.yaml", "resolved:toc.yaml"}, order)
	assert.Equal(t, []string{"admin"}, meta.restricted["a.md"])
}

func TestIncludeInterceptor(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"toc.yaml":     "items:\n  - include: {path: old/toc.yaml, mode: link}\n  - name: gone\n    include: {path: old/toc.yaml, mode: link}\n",
		"new/toc.yaml": "items:\n  - name: N\n    href: n.md\n",
	})
	s := newTestService(t, fs, Options{})
	s.Hooks().OnInclude(func(_ context.Context, item *Item, _ string) (*Item, error) {
		if item.Name == "gone" {
			return nil, nil
		}
		item.Include.Path = strings.Replace(item.Include.Path, "old/", "new/", 1)
		return item, nil
	})

	toc, err := s.Load(context.Background(), "toc.yaml")
	require.NoError(t, err)
	require.Len(t, toc.Items, 1)
	assert.Equal(t, "new/n.md", toc.Items[0].Href)
}

func TestIncludeInterceptorPathsAreProjectRelative(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"docs/toc.yaml":     "items:\n  - include: {path: old/toc.yaml, mode: link}\n  - include: {path: up/toc.yaml, mode: link}\n",
		"docs/new/toc.yaml": "items:\n  - name: N\n    href: n.md\n",
		"shared/toc.yaml":   "items:\n  - name: S\n    href: s.md\n",
	})
	s := newTestService(t, fs, Options{})
	var seen []string
	var mu sync.Mutex
	s.Hooks().OnInclude(func(_ context.Context, item *Item, _ string) (*Item, error) {
		mu.Lock()
		seen = append(seen, item.Include.Path)
		mu.Unlock()
		switch item.Include.Path {
		case "docs/old/toc.yaml":
			item.Include.Path = "/docs/new/./toc.yaml"
		case "docs/up/toc.yaml":
			item.Include.Path = "shared/toc.yaml"
		}
		return item, nil
	})

	toc, err := s.Load(context.Background(), "docs/toc.yaml")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs/old/toc.yaml", "docs/up/toc.yaml"}, seen)
	require.Len(t, toc.Items, 2)
	assert.Equal(t, "new/n.md", toc.Items[0].Href)
	assert.Equal(t, "../shared/s.md", toc.Items[1].Href)

	s.Reset()
	s.Hooks().OnInclude(func(_ context.Context, item *Item, _ string) (*Item, error) {
		item.Include.Path = "../elsewhere/toc.yaml"
		return item, nil
	})
	_, err = s.Load(context.Background(), "docs/toc.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is outside the project root")
}
