// Package workspace manages the directory tocs are resolved in.
//
// Merge includes copy files next to the including toc, so a build normally
// resolves a copy of the input tree instead of the sources themselves.
// Ephemeral workspaces are fresh temporary directories removed on Cleanup;
// persistent workspaces live at a fixed path that is refreshed on every
// Populate; in-place workspaces resolve the input directory directly.
package workspace
