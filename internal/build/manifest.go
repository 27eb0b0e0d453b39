package build

import (
	"context"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/tocbuilder/internal/meta"
)

// ManifestFilename is written to the output directory by every build.
const ManifestFilename = "manifest.yaml"

const manifestVersion = "1"

// Manifest summarizes a build: the resolved tocs, the content files they
// reference and the metadata recorded for files.
type Manifest struct {
	Version string          `yaml:"version"`
	Tocs    []string        `yaml:"tocs"`
	Skipped []string        `yaml:"skipped,omitempty"`
	Entries []string        `yaml:"entries"`
	Files   []meta.FileMeta `yaml:"files,omitempty"`
}

func (s *Session) manifest(ctx context.Context, res *BuildResult) (*Manifest, error) {
	files, err := s.store.Files(ctx)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryMeta, "failed to list file metadata").Build()
	}
	return &Manifest{
		Version: manifestVersion,
		Tocs:    res.Tocs,
		Skipped: res.Skipped,
		Entries: res.Entries,
		Files:   files,
	}, nil
}

// Marshal serializes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to serialize manifest").Build()
	}
	return data, nil
}

// ParseManifest decodes a manifest written by Build.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid manifest").Build()
	}
	return &m, nil
}
