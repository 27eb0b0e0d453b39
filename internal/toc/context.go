package toc

import (
	"path"
	"slices"
	"strings"
)

// IncludeInfo describes how a toc is being included.
type IncludeInfo struct {
	// From is the logical path of the including toc: the location its
	// hrefs are served from. Defaults to the included path.
	From string
	// Mode defaults to ModeRootMerge.
	Mode IncludeMode
	// Base is the merge destination directory inherited from the chain.
	Base string
	// Content, when set, is resolved instead of reading the file.
	Content *RawToc
	// Parent is the physical path of the including toc, used in errors.
	Parent string

	chain      []string
	held       []heldInclude
	contentKey string
}

// resolveContext carries everything the pipeline needs to know about the
// toc being resolved.
type resolveContext struct {
	path  string
	from  string
	mode  IncludeMode
	base  string
	vars  map[string]any
	chain []string
	held  []heldInclude
}

func (info IncludeInfo) context(p string) resolveContext {
	rc := resolveContext{
		path:  p,
		from:  NormalizePath(info.From),
		mode:  info.Mode,
		base:  info.Base,
		chain: append(slices.Clone(info.chain), p),
		held:  info.held,
	}
	if info.From == "" {
		rc.from = p
	}
	if rc.mode.IsMerge() && rc.base == "" {
		rc.base = path.Dir(rc.from)
	}
	return rc
}

// tocDir is the directory hrefs of the toc are written relative to once
// the toc is in place: the merge destination for merged tocs, the file's own
// directory otherwise.
func (rc resolveContext) tocDir() string {
	if rc.mode.IsMerge() && rc.base != "" {
		return rc.base
	}
	return path.Dir(rc.path)
}

// serveDir is the directory the resolved items are relative to as seen by
// the including toc.
func (rc resolveContext) serveDir() string {
	if rc.mode == ModeLink {
		return path.Dir(rc.from)
	}
	return rc.tocDir()
}

// logicalPath is where the toc effectively lives for its own includes.
func (rc resolveContext) logicalPath() string {
	switch {
	case rc.mode == ModeLink:
		return rc.from
	case rc.mode.IsMerge() && rc.base != "":
		return path.Join(rc.base, path.Base(rc.path))
	default:
		return rc.path
	}
}

// includeInfo derives the context of an include made by this toc.
func (rc resolveContext) includeInfo(mode IncludeMode) IncludeInfo {
	info := IncludeInfo{
		From:   rc.logicalPath(),
		Mode:   mode,
		Base:   rc.base,
		Parent: rc.path,
		chain:  rc.chain,
		held:   rc.held,
	}
	switch mode {
	case ModeRootMerge:
		if info.Base == "" {
			info.Base = rc.serveDir()
		}
	case ModeMerge:
		info.Base = rc.tocDir()
	}
	return info
}

func (rc resolveContext) key(contentKey string) string {
	return strings.Join([]string{string(rc.mode), rc.base, rc.from, rc.path, contentKey}, "\x00")
}
