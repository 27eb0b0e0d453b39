package commands

import (
	"context"
	"fmt"
	"io"

	"git.home.luguber.info/inful/tocbuilder/internal/build"
)

// ResolveCmd implements the 'resolve' command.
type ResolveCmd struct {
	Output string   `short:"o" help:"Override the output directory" type:"path"`
	DryRun bool     `name:"dry-run" help:"Resolve without writing output"`
	Roots  []string `arg:"" optional:"" help:"Top-level tocs to resolve (default: configured roots or every toc file)"`
}

func (r *ResolveCmd) Run(ctx context.Context, root *CLI, out io.Writer) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if r.Output != "" {
		cfg.Output = r.Output
	}
	res, err := build.NewBuildService().Run(ctx, build.BuildRequest{
		Config: cfg,
		Roots:  r.Roots,
		DryRun: r.DryRun,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Resolved %d tocs (%d skipped), %d entries\n", len(res.Tocs), len(res.Skipped), len(res.Entries))
	if !r.DryRun {
		fmt.Fprintf(out, "Wrote %d files to %s\n", res.FilesWritten, res.OutputPath)
	}
	return nil
}
