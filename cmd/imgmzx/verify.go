package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const verifyLongDesc string = `Check both local copies of objects.

Each copy is decrypted and hashed; nothing is repaired. The command fails
when any copy is missing or corrupt. Use get to repair a damaged object.

Examples:
  imgmzx verify 3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1b`

const verifyShortDesc string = "Check both local copies"

var errUnhealthy = errors.New("damaged copies found")

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <hash>...",
		Short: verifyShortDesc,
		Long:  verifyLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerify(cmd, args)
		},
	}
}

func (a *app) runVerify(cmd *cobra.Command, args []string) (err error) {
	hashes, err := parseHashes(args)
	if err != nil {
		return err
	}

	db, err := a.open(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer closeDB(db, &err)

	healthy := true
	for _, h := range hashes {
		rep, err := db.Verify(h)
		if err != nil {
			return err
		}
		size := "-"
		if rep.Size > 0 {
			size = humanize.Bytes(uint64(rep.Size))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  primary=%s backup=%s size=%s\n", h, rep.Primary, rep.Backup, size)
		healthy = healthy && rep.Healthy()
	}
	if !healthy {
		return errUnhealthy
	}
	return nil
}
