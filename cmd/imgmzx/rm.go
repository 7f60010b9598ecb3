package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wmlabtx/imgmzx/model"
)

const rmLongDesc string = `Move objects to the archive.

The primary copy is moved to <archive>/<date>/<time>.<hash>.<ext>, the
backup copy goes to the trash and the metadata record is removed. Unknown
hashes are ignored.

Examples:
  imgmzx rm 3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1b`

const rmShortDesc string = "Move objects to the archive"

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <hash>...",
		Short: rmShortDesc,
		Long:  rmLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRm(cmd, args)
		},
	}
}

func (a *app) runRm(cmd *cobra.Command, args []string) (err error) {
	hashes, err := parseHashes(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := a.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB(db, &err)

	for _, h := range hashes {
		if err := db.Delete(ctx, h); err != nil {
			return fmt.Errorf("deleting %s: %w", h.Short(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", h)
	}
	return nil
}

func parseHashes(args []string) ([]model.ContentHash, error) {
	out := make([]model.ContentHash, 0, len(args))
	for _, arg := range args {
		h, err := model.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		out = append(out, h)
	}
	return out, nil
}
