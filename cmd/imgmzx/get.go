package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wmlabtx/imgmzx/model"
)

const getLongDesc string = `Print a stored object.

The object is decrypted and verified against its hash. A damaged copy is
repaired on the way. Without --output the plaintext goes to stdout.

Examples:
  imgmzx get 3a7bd3e2360a3d29eea436fcfb7e44c735d117c42d1c1835420b6b9942dd4f1b -o photo.jpg`

const getShortDesc string = "Print or save a stored object"

func newGetCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <hash>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGet(cmd, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (a *app) runGet(cmd *cobra.Command, arg, output string) (err error) {
	hash, err := model.Parse(arg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := a.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB(db, &err)

	data, err := db.Get(ctx, hash)
	if err != nil {
		return err
	}
	if output != "" {
		return os.WriteFile(output, data, 0o644)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
