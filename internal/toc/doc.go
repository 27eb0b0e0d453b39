// Package toc loads, resolves and caches table-of-contents documents.
//
// A toc is a YAML tree of navigation items. Items may include other tocs
// (by link, or by merging the included toc's directory into the including
// one), may be generated by named includers, may carry conditions and
// templated fields, and may be hidden. Service runs every toc through a fixed
// pipeline, deduplicates concurrent work per path and context, and exposes the
// resolved trees, the set of referenced content entries and extension hooks.
package toc
