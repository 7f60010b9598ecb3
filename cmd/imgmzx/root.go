package main

import (
	"context"
	"fmt"
	"io"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wmlabtx/imgmzx"
)

const rootLongDesc string = `imgmzx stores photos encrypted under their SHA-256 content hash.

Every object is written to a primary and a backup volume and verified on
read. Damaged copies are repaired from the other volume or from the
configured S3 / MinIO mirror.

Configuration is read from --config (TOML, YAML or JSON), then IMGMZX_*
environment variables, then flags. For example IMGMZX_ROOT sets root and
IMGMZX_MIRROR_BUCKET sets mirror.bucket.

Commands:
  imgmzx put <file>...         Store files and print their hashes
  imgmzx get <hash> [-o file]  Print or save a stored object
  imgmzx rm <hash>...          Move objects to the archive
  imgmzx verify <hash>...      Check both local copies
  imgmzx refresh [hash]...     Recompute nearest neighbors
  imgmzx config                Print the resolved configuration`

const rootShortDesc string = "imgmzx - encrypted photo store"

// persistentFlags maps flags to viper keys.
var persistentFlags = []struct {
	name, key, usage string
}{
	{"root", "root", "directory of primary copies"},
	{"backup", "backup", "directory of backup copies"},
	{"archive", "archive", "directory receiving deleted objects"},
	{"metadata-dir", "metadata_dir", "Badger directory for metadata records"},
	{"snapshot", "snapshot_path", "arena snapshot file"},
}

type app struct {
	configPath string
	debug      bool
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "imgmzx",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file")
	cmd.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "Enable debug logging")
	for _, f := range persistentFlags {
		cmd.PersistentFlags().String(f.name, "", f.usage)
	}

	cmd.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newRmCmd(a),
		newVerifyCmd(a),
		newRefreshCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

// init loads the configuration and binds flags so they take precedence.
func (a *app) init(cmd *cobra.Command) error {
	v, err := imgmzx.NewViper(a.configPath)
	if err != nil {
		return err
	}
	for _, f := range persistentFlags {
		if fl := cmd.Flags().Lookup(f.name); fl != nil && fl.Changed {
			if err := v.BindPFlag(f.key, fl); err != nil {
				return err
			}
		}
	}
	a.v = v
	return nil
}

func (a *app) logger(w io.Writer) *imgmzx.Logger {
	level := charmlog.InfoLevel
	if a.debug {
		level = charmlog.DebugLevel
	}
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "imgmzx",
	})
	return imgmzx.NewLogger(handler)
}

// open opens the DB described by the resolved configuration.
func (a *app) open(ctx context.Context, cmd *cobra.Command) (*imgmzx.DB, error) {
	cfg, err := imgmzx.ConfigFromViper(a.v)
	if err != nil {
		return nil, err
	}
	db, err := imgmzx.Open(ctx, cfg, imgmzx.WithLogger(a.logger(cmd.ErrOrStderr())))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return db, nil
}

// closeDB closes db and reports a close failure unless err is already set.
func closeDB(db *imgmzx.DB, err *error) {
	if cerr := db.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("closing store: %w", cerr)
	}
}
