// Package cli implements the gosqlrestore command line.
package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/version"
)

// globalOptions carries the persistent flags and the lazily built App
type globalOptions struct {
	envFiles []string
	debug    bool
	factory  AppFactory
	app      *App
}

// appFor loads configuration and wires components on first use, so commands
// like version never touch the environment.
func (o *globalOptions) appFor(cmd *cobra.Command) (*App, error) {
	if o.app != nil {
		return o.app, nil
	}

	cfg := config.Load(o.envFiles...)
	if o.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, outcome.ConfigError("Configuration validation failed.", err)
	}

	app, err := o.factory(cmd.Context(), cfg, newLogger(cfg.Debug))
	if err != nil {
		return nil, err
	}
	o.app = app
	return app, nil
}

// NewRootCommand builds the command tree
func NewRootCommand(info version.VersionInfo) *cobra.Command {
	return newRootCommand(info, NewApp)
}

func newRootCommand(info version.VersionInfo, factory AppFactory) *cobra.Command {
	opts := &globalOptions{factory: factory}

	cmd := &cobra.Command{
		Use:           "gosqlrestore",
		Short:         "MySQL backup and restore",
		Long:          "GoSQLRestore dumps MySQL databases to timestamped .sql artifacts and restores them into existing or newly created databases.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       info.Short(),
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "env files to load before reading the environment (default .env,.env.local)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCommand(opts),
		newBackupCommand(opts),
		newRestoreCommand(opts),
		newDatabasesCommand(opts),
		newArtifactsCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(info),
	)

	return cmd
}

// ErrorMessage renders err for the terminal, preferring the operator-facing
// message of classified errors.
func ErrorMessage(err error) string {
	var oe *outcome.Error
	if errors.As(err, &oe) {
		o := outcome.FromError(err)
		if o.Detail != "" {
			return o.Message + "\n" + o.Detail
		}
		if oe.Kind == outcome.KindConfig && oe.Err != nil {
			return o.Message + " " + oe.Err.Error()
		}
		return o.Message
	}
	return err.Error()
}
