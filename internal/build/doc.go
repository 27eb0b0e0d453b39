// Package build runs a complete toc resolution build for tocbuilder.
//
// A Session wires the configuration to its collaborators: the workspace the
// tocs are resolved in, the metadata store, the metrics recorder, the presets
// provider and the toc service with its built-in includers. Session.Build
// discovers the top-level tocs, loads them and writes the resolved tocs plus
// a manifest to the output directory. All execution paths (resolve command,
// watch mode, tests) should route through BuildService or a Session.
package build
