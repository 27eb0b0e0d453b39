package commands

import (
	"context"
	"fmt"
	"io"
)

// EntriesCmd implements the 'entries' command.
type EntriesCmd struct{}

func (e *EntriesCmd) Run(ctx context.Context, root *CLI, out io.Writer) error {
	sess, err := root.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	res, err := sess.Resolve(ctx)
	if err != nil {
		return err
	}
	for _, entry := range res.Entries {
		fmt.Fprintln(out, entry)
	}
	return nil
}
