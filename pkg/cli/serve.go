package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/supporttools/GoSQLRestore/pkg/version"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin web server and the backup scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.appFor(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, app)
		},
	}
}

// serve runs until ctx is cancelled, then stops the scheduler and drains
// in-flight requests.
func serve(ctx context.Context, app *App) error {
	log := app.Logger
	log.WithField("version", version.Get().Short()).Info("Starting GoSQLRestore")

	if err := app.Scheduler.SetupJobs(); err != nil {
		return err
	}
	app.Scheduler.Start()

	// Requests block until the backup or restore finishes
	writeTimeout := time.Duration(0)
	if app.Config.Tools.CommandTimeout > 0 {
		writeTimeout = app.Config.Tools.CommandTimeout + time.Minute
	}
	srv := app.AdminServer()
	srv.Start(app.Config.ListenPort, writeTimeout)

	<-ctx.Done()
	log.Info("Received shutdown signal, shutting down...")

	app.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
		return err
	}
	return nil
}
