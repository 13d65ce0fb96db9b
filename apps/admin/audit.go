package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var errInconsistent = errors.New("inconsistencies found")

// audit prints every broken room/student invariant and fails when there is any.
func (cli *commandLine) audit(ctx context.Context) error {
	found, err := cli.hostelSvc.Audit(ctx)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(cli.out, "rooms and students are consistent")
		return nil
	}
	for _, inc := range found {
		fmt.Fprintf(cli.out, "%-20s room=%-10s student=%-10s %s\n", inc.Kind, inc.RoomID, inc.StudentID, inc.Detail)
	}
	return errors.Wrapf(errInconsistent, "%d", len(found))
}
