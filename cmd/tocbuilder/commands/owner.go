package commands

import (
	"context"
	"io"

	"gopkg.in/yaml.v3"
)

// OwnerCmd implements the 'owner' command.
type OwnerCmd struct {
	File string `arg:"" help:"Project-relative path of a content file"`
}

func (o *OwnerCmd) Run(ctx context.Context, root *CLI, out io.Writer) error {
	sess, err := root.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	if _, err := sess.Resolve(ctx); err != nil {
		return err
	}
	owner, err := sess.Owner(ctx, o.File)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(owner); err != nil {
		return err
	}
	return enc.Close()
}
