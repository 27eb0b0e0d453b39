package toc

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)

// NormalizePath cleans a project-relative path. Backslashes become slashes
// and a leading slash is dropped, so "/a/./b" and "a/b" are the same key.
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimLeft(p, "/")
	return path.Clean(p)
}

// escapesRoot reports whether a normalized path points above the project
// root.
func escapesRoot(p string) bool {
	return p == ".." || strings.HasPrefix(p, "../")
}

// IsExternal reports whether href points outside the project: it has a URL
// scheme or is protocol-relative.
func IsExternal(href string) bool {
	return strings.HasPrefix(href, "//") || schemeRe.MatchString(href)
}

// isLocal reports whether href is a project-relative reference that may be
// rebased or normalized.
func isLocal(href string) bool {
	return href != "" && !IsExternal(href) && !strings.HasPrefix(href, "/") &&
		!strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "?")
}

// splitHref separates the path part of href from its query and fragment.
func splitHref(href string) (string, string) {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i], href[i:]
	}
	return href, ""
}

// relativePath returns target relative to dir. Both are project-relative.
func relativePath(dir, target string) string {
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}

// rebaseHref rewrites a local href written relative to fromDir so that it
// points at the same file relative to toDir.
func rebaseHref(href, fromDir, toDir string) string {
	if fromDir == toDir || !isLocal(href) {
		return href
	}
	p, suffix := splitHref(href)
	trailing := strings.HasSuffix(p, "/")
	out := relativePath(toDir, path.Join(fromDir, p))
	if trailing && !strings.HasSuffix(out, "/") {
		out += "/"
	}
	return out + suffix
}

// normalizeHref completes a local href: directory references get
// "index.yaml" and extensionless references get ext.
func normalizeHref(href, ext string) string {
	if !isLocal(href) {
		return href
	}
	p, suffix := splitHref(href)
	switch {
	case strings.HasSuffix(p, "/"):
		p += "index.yaml"
	case path.Ext(path.Base(p)) == "" && ext != "":
		p += ext
	}
	return p + suffix
}

// entryPath maps a local href of the toc at tocPath to a project-relative
// entry path.
func entryPath(tocPath, href string) (string, bool) {
	if !isLocal(href) {
		return "", false
	}
	p, _ := splitHref(href)
	if p == "" {
		return "", false
	}
	return NormalizePath(path.Join(path.Dir(tocPath), p)), true
}
