// Package fsutil holds filesystem helpers shared by the toc engine and the workspace.
package fsutil

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
)

// CopiedFile records one file copied by Copier.CopyDir.
type CopiedFile struct {
	From string
	To   string
}

// Copier copies directory trees on an afero filesystem. Copies into the same
// destination are serialized, and repeating a copy overwrites with identical
// content, so callers may retry or race freely.
type Copier struct {
	fs       afero.Fs
	excludes []glob.Glob

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCopier creates a copier; excludes are glob patterns matched against
// slash-separated paths relative to the copied directory ("**" crosses directories).
func NewCopier(fs afero.Fs, excludes []string) (*Copier, error) {
	compiled, err := compileGlobs(excludes)
	if err != nil {
		return nil, err
	}
	return &Copier{fs: fs, excludes: compiled, locks: make(map[string]*sync.Mutex)}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (c *Copier) lockFor(dst string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[dst]
	if !ok {
		l = &sync.Mutex{}
		c.locks[dst] = l
	}
	return l
}

// CopyDir copies every file under src into dst, preserving relative layout.
// extraExcludes apply to this call only. When dst lies inside src, the dst
// subtree is skipped so the copy cannot feed on itself.
func (c *Copier) CopyDir(src, dst string, extraExcludes ...string) ([]CopiedFile, error) {
	src = path.Clean(filepath.ToSlash(src))
	dst = path.Clean(filepath.ToSlash(dst))
	if src == dst {
		return nil, nil
	}

	extra, err := compileGlobs(extraExcludes)
	if err != nil {
		return nil, err
	}
	excludes := append(append([]glob.Glob{}, c.excludes...), extra...)

	lock := c.lockFor(dst)
	lock.Lock()
	defer lock.Unlock()

	var copied []CopiedFile
	walkErr := afero.Walk(c.fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		p = filepath.ToSlash(p)
		rel := relTo(src, p)
		if rel == "." {
			return nil
		}
		if dst != "." && (p == dst || strings.HasPrefix(p, dst+"/")) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if matchAny(excludes, rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := path.Join(dst, rel)
		if info.IsDir() {
			return c.fs.MkdirAll(target, 0o755)
		}
		if err := c.copyFile(p, target, info.Mode()); err != nil {
			return err
		}
		copied = append(copied, CopiedFile{From: p, To: target})
		return nil
	})
	if walkErr != nil {
		return copied, fmt.Errorf("copy %s to %s: %w", src, dst, walkErr)
	}
	return copied, nil
}

func (c *Copier) copyFile(src, dst string, mode os.FileMode) error {
	data, err := afero.ReadFile(c.fs, src)
	if err != nil {
		return err
	}
	if err := c.fs.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(c.fs, dst, data, mode.Perm())
}

func matchAny(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func relTo(base, p string) string {
	if base == "." {
		return strings.TrimPrefix(p, "./")
	}
	if p == base {
		return "."
	}
	return strings.TrimPrefix(p, base+"/")
}
