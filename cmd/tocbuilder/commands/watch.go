package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/tocbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Output string `short:"o" help:"Override the output directory" type:"path"`
}

func (w *WatchCmd) Run(ctx context.Context, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if w.Output != "" {
		cfg.Output = w.Output
	}
	sess, err := root.openSessionFor(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	if _, err := sess.Build(ctx); err != nil {
		// keep watching; the next change may fix it
		slog.Warn("Initial build failed", "error", err)
	}

	ignore := []string{cfg.Output, cfg.Meta.Path, cfg.Metrics.Textfile}
	if !cfg.Workspace.InPlace {
		ignore = append(ignore, sess.Workspace())
	}
	watcher, err := watch.New(cfg.Input, sess, watch.Options{
		Debounce: cfg.Watch.Debounce,
		Ignore:   ignore,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}
