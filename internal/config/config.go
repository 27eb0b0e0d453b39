// Package config loads and validates the tocbuilder configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
)

// DefaultFilename is the configuration file looked up when none is given.
const DefaultFilename = "tocbuilder.yaml"

// Config represents the application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Input     string          `yaml:"input"`
	Output    string          `yaml:"output"`
	Toc       TocConfig       `yaml:"toc"`
	Copy      CopyConfig      `yaml:"copy"`
	Vars      VarsConfig      `yaml:"vars"`
	Meta      MetaConfig      `yaml:"meta"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Watch     WatchConfig     `yaml:"watch"`
}

// TocConfig controls toc discovery and resolution.
type TocConfig struct {
	Filename             string   `yaml:"filename"`
	Roots                []string `yaml:"roots,omitempty"`
	IgnoreStage          []string `yaml:"ignore_stage,omitempty"`
	RemoveHiddenItems    bool     `yaml:"remove_hidden_items"`
	ResolveConditions    bool     `yaml:"resolve_conditions"`
	ResolveSubstitutions bool     `yaml:"resolve_substitutions"`
	Concurrency          int      `yaml:"concurrency"`
	DefaultExtension     string   `yaml:"default_extension"`
	MaxIncludeDepth      int      `yaml:"max_include_depth,omitempty"`
}

// CopyConfig controls files copied by merge includes.
type CopyConfig struct {
	Exclude []string `yaml:"exclude,omitempty"`
}

// VarsConfig controls template variables.
type VarsConfig struct {
	Presets string         `yaml:"presets"`
	Preset  string         `yaml:"preset"`
	Values  map[string]any `yaml:"values,omitempty"`
}

// MetaConfig selects the metadata store.
type MetaConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
}

// MetricsConfig controls Prometheus metrics export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile,omitempty"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WorkspaceConfig controls where resolution happens. Merge includes copy
// files, so by default the input tree is copied to a scratch workspace first.
type WorkspaceConfig struct {
	InPlace bool   `yaml:"in_place"`
	Dir     string `yaml:"dir,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Input:   ".",
		Output:  "_build",
		Toc: TocConfig{
			Filename:             "toc.yaml",
			IgnoreStage:          []string{"skip"},
			RemoveHiddenItems:    true,
			ResolveConditions:    true,
			ResolveSubstitutions: true,
			Concurrency:          8,
			DefaultExtension:     ".md",
		},
		Copy: CopyConfig{Exclude: []string{".git", "**/.git/**"}},
		Vars: VarsConfig{Presets: "presets.yaml", Preset: "default"},
		Meta: MetaConfig{Driver: "memory"},
		Logging: LoggingConfig{
			Level:  string(LogLevelInfo),
			Format: string(LogFormatText),
		},
		Watch: WatchConfig{Debounce: 300 * time.Millisecond},
	}
}

// Load reads, expands and validates the configuration at configPath.
// Relative input, output and meta paths are resolved against the
// configuration file's directory.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, errors.ConfigError("configuration file not found: " + configPath).Build()
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").Fatal().Build()
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(configPath))
	return cfg, nil
}

// Parse decodes YAML onto the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid configuration").Fatal().Build()
	}
	return cfg, nil
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Input = abs(c.Input)
	c.Output = abs(c.Output)
	if c.Meta.Path != ":memory:" {
		c.Meta.Path = abs(c.Meta.Path)
	}
	c.Metrics.Textfile = abs(c.Metrics.Textfile)
	c.Workspace.Dir = abs(c.Workspace.Dir)
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}
	example := Default()
	example.Input = "./docs"
	example.Vars.Values = map[string]any{"product": "Example"}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").Build()
	}
	return nil
}
