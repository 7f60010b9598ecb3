package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const putLongDesc string = `Store one or more files.

Each file is encrypted under its SHA-256 hash and written to the primary
and backup volumes. Storing a file that is already present rewrites both
copies. The hash of every file is printed on its own line.

Examples:
  imgmzx put photo.jpg
  imgmzx put --config imgmzx.toml *.jpg`

const putShortDesc string = "Store files"

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file>...",
		Short: putShortDesc,
		Long:  putLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPut(cmd, args)
		},
	}
}

func (a *app) runPut(cmd *cobra.Command, files []string) (err error) {
	ctx := cmd.Context()
	db, err := a.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB(db, &err)

	var total uint64
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		hash, err := db.Put(ctx, data)
		if err != nil {
			return fmt.Errorf("storing %s: %w", name, err)
		}
		total += uint64(len(data))
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hash, name)
	}
	a.logger(cmd.ErrOrStderr()).Info("stored", "files", len(files), "size", humanize.Bytes(total))
	return nil
}
