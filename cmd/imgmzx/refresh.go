package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const refreshLongDesc string = `Recompute the nearest unseen neighbor of objects.

Without arguments every metadata record is refreshed. Objects without a
stored vector need an embedding service, which the command line does not
provide; refresh them from a program that passes imgmzx.WithEmbedder.
Lost objects are reported and their records removed.

Examples:
  imgmzx refresh --metadata-dir /var/lib/imgmzx/meta
  imgmzx refresh 3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1b`

const refreshShortDesc string = "Recompute nearest neighbors"

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [hash]...",
		Short: refreshShortDesc,
		Long:  refreshLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRefresh(cmd, args)
		},
	}
}

func (a *app) runRefresh(cmd *cobra.Command, args []string) (err error) {
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

	if len(hashes) == 1 {
		out, err := db.Refresh(ctx, hashes[0])
		if err != nil {
			return err
		}
		next := out.Next.String()
		if next == "" {
			next = "-"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  next=%s distance=%.4f updated=%t\n",
			out.Hash, next, out.Distance, out.Updated)
		return nil
	}

	stats, err := db.RefreshAll(ctx, hashes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "processed=%d updated=%d embedded=%d lost=%d in %s\n",
		stats.Processed, stats.Updated, stats.Embedded, stats.Lost, stats.Duration.Round(time.Millisecond))
	return nil
}
