package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
)

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or replace the stored MySQL connection settings",
	}
	cmd.AddCommand(newConfigShowCommand(opts), newConfigSetCommand(opts))
	return cmd
}

func newConfigShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored connection settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.appFor(cmd)
			if err != nil {
				return err
			}

			cfg := app.Store.Load()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:     %s\n", app.Store.Path())
			fmt.Fprintf(out, "host:     %s\n", cfg.Host)
			fmt.Fprintf(out, "username: %s\n", cfg.Username)
			fmt.Fprintf(out, "password: %s\n", maskPassword(cfg.Password))
			return nil
		},
	}
}

// newConfigSetCommand replaces the stored settings wholesale; unset flags
// take their defaults.
func newConfigSetCommand(opts *globalOptions) *cobra.Command {
	defaults := connstore.Default()
	var cfg connstore.ConnectionConfig

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the stored connection settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.appFor(cmd)
			if err != nil {
				return err
			}

			if err := app.Store.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Success("Configuration saved successfully!").Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Host, "host", defaults.Host, "MySQL host, optionally host:port")
	cmd.Flags().StringVar(&cfg.Username, "username", defaults.Username, "MySQL user")
	cmd.Flags().StringVar(&cfg.Password, "password", defaults.Password, "MySQL password")

	return cmd
}

func maskPassword(password string) string {
	if password == "" {
		return "(not set)"
	}
	return "********"
}
