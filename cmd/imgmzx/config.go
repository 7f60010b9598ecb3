package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wmlabtx/imgmzx"
)

const configLongDesc string = `Print the resolved configuration.

Shows every key after merging defaults, the config file, IMGMZX_*
environment variables and flags, then validates the result. Secrets are
masked.

Examples:
  imgmzx config --config imgmzx.toml`

const configShortDesc string = "Print the resolved configuration"

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runConfig(cmd)
		},
	}
}

func (a *app) runConfig(cmd *cobra.Command) error {
	keys := a.v.AllKeys()
	slices.Sort(keys)

	w := cmd.OutOrStdout()
	if f := a.v.ConfigFileUsed(); f != "" {
		fmt.Fprintf(w, "# %s\n", f)
	}
	for _, k := range keys {
		val := fmt.Sprint(a.v.Get(k))
		if strings.HasSuffix(k, "secret_key") && val != "" {
			val = "********"
		}
		fmt.Fprintf(w, "%s = %s\n", k, val)
	}

	_, err := imgmzx.ConfigFromViper(a.v)
	return err
}
