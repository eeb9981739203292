package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/restore"
)

func newBackupCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup DATABASE",
		Short: "Dump a database into a new artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.appFor(cmd)
			if err != nil {
				return err
			}

			artifact, err := app.Backups.Backup(cmd.Context(), args[0], app.Store.Load())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Success("Backup created successfully! File: %s", artifact.Filename).Message)
			return nil
		},
	}
}

func newRestoreCommand(opts *globalOptions) *cobra.Command {
	var (
		file        string
		target      string
		newDatabase string
	)

	cmd := &cobra.Command{
		Use:   "restore --file ARTIFACT (--target DATABASE | --new DATABASE)",
		Short: "Apply an artifact to an existing or new database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.appFor(cmd)
			if err != nil {
				return err
			}

			t := restore.ExistingTarget(target)
			if cmd.Flags().Changed("new") {
				t = restore.NewTarget(newDatabase)
			}

			res, err := app.Restores.Restore(cmd.Context(), t, file, app.Store.Load())
			if err != nil {
				return err
			}
			if res.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created database '%s'.\n", res.Database)
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Success("Database restored successfully to '%s'.", res.Database).Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "artifact filename in the backup directory")
	cmd.Flags().StringVarP(&target, "target", "t", "", "existing database to restore into")
	cmd.Flags().StringVar(&newDatabase, "new", "", "name of a database to create and restore into")
	cmd.MarkFlagsMutuallyExclusive("target", "new")

	return cmd
}

func newDatabasesCommand(opts *globalOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "databases",
		Short: "List databases on the configured server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.appFor(cmd)
			if err != nil {
				return err
			}

			conn := app.Store.Load()
			names := app.Catalog.ListDatabases(cmd.Context(), conn)
			if strict {
				if names, err = app.Catalog.ProbeDatabases(cmd.Context(), conn); err != nil {
					return err
				}
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the server cannot be reached instead of printing nothing")
	return cmd
}

func newArtifactsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "artifacts",
		Aliases: []string{"backups"},
		Short:   "List backup artifacts in the backup directory",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.appFor(cmd)
			if err != nil {
				return err
			}

			for _, a := range app.Catalog.ListArtifacts() {
				fmt.Fprintln(cmd.OutOrStdout(), a.Describe())
			}
			return nil
		},
	}
}
