package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tocbuilder/internal/build"
	"git.home.luguber.info/inful/tocbuilder/internal/config"
)

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"tocbuilder.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Resolve ResolveCmd `cmd:"" help:"Resolve every top-level toc and write them to the output directory"`
	Dump    DumpCmd    `cmd:"" help:"Print one resolved toc"`
	Entries EntriesCmd `cmd:"" help:"List the content files referenced by the resolved tocs"`
	Owner   OwnerCmd   `cmd:"" help:"Show the toc and recorded metadata for a content file"`
	Watch   WatchCmd   `cmd:"" help:"Resolve and rebuild whenever the input changes"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; logging is reconfigured once the
// configuration file is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	configureLogging(c.Verbose, config.LoggingConfig{})
	return nil
}

// LoadConfig loads the configuration file and applies its logging settings.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	configureLogging(c.Verbose, cfg.Logging)
	return cfg, nil
}

// openSession loads the configuration and opens a build session.
func (c *CLI) openSession(ctx context.Context) (*build.Session, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	return c.openSessionFor(ctx, cfg)
}

func (c *CLI) openSessionFor(ctx context.Context, cfg *config.Config) (*build.Session, error) {
	return build.Open(ctx, cfg, build.WithLogger(slog.Default()))
}

func configureLogging(verbose bool, lc config.LoggingConfig) *slog.Logger {
	level := config.NormalizeLogLevel(lc.Level).SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if config.NormalizeLogFormat(lc.Format) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func closeSession(s *build.Session) {
	if err := s.Close(); err != nil {
		slog.Warn("Failed to close session", "error", err)
	}
}
