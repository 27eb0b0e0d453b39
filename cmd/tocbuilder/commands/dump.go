package commands

import (
	"context"
	"io"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
)

// DumpCmd implements the 'dump' command.
type DumpCmd struct {
	Path string `arg:"" help:"Project-relative path of the toc"`
}

func (d *DumpCmd) Run(ctx context.Context, root *CLI, out io.Writer) error {
	sess, err := root.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	data, err := sess.Service().Dump(ctx, d.Path)
	if err != nil {
		return err
	}
	if data == nil {
		return errors.TocError("toc " + d.Path + " is skipped by its stage").Build()
	}
	_, err = out.Write(data)
	return err
}
