package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/supporttools/GoSQLRestore/pkg/adminserver"
	"github.com/supporttools/GoSQLRestore/pkg/backup"
	"github.com/supporttools/GoSQLRestore/pkg/catalog"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/lock"
	"github.com/supporttools/GoSQLRestore/pkg/restore"
	"github.com/supporttools/GoSQLRestore/pkg/runner"
	"github.com/supporttools/GoSQLRestore/pkg/scheduler"
	"github.com/supporttools/GoSQLRestore/pkg/storage/s3"
)

// App holds the wired components shared by every command
type App struct {
	Config    config.AppConfig
	Logger    *logrus.Logger
	Store     *connstore.Store
	Catalog   *catalog.Lister
	Backups   *backup.Manager
	Restores  *restore.Manager
	Scheduler *scheduler.Scheduler
}

// AppFactory builds an App from the loaded configuration
type AppFactory func(ctx context.Context, cfg config.AppConfig, logger *logrus.Logger) (*App, error)

// NewApp wires the production components: real child processes, the
// go-sql-driver catalog and, when enabled, the S3 uploader.
func NewApp(ctx context.Context, cfg config.AppConfig, logger *logrus.Logger) (*App, error) {
	var opts []backup.Option
	if cfg.S3.Enabled {
		client, err := s3.NewClient(ctx, cfg.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		opts = append(opts, backup.WithUploader(client))
	}
	return newApp(cfg, logger, runner.ExecRunner{}, opts...), nil
}

// newApp wires the components around r. Backups and restores share one
// lock set so the same database is never dumped and restored at once.
func newApp(cfg config.AppConfig, logger *logrus.Logger, r runner.Runner, backupOpts ...backup.Option) *App {
	locks := lock.NewKeyed()

	store := connstore.NewStore(cfg.ConnectionConfigFile, logger)
	lister := catalog.NewLister(cfg.BackupDirectory, cfg.Tools, nil, logger)

	backupOpts = append([]backup.Option{backup.WithLocks(locks), backup.WithLogger(logger)}, backupOpts...)
	backups := backup.NewManager(cfg, r, backupOpts...)
	restores := restore.NewManager(cfg, lister, r, restore.WithLocks(locks), restore.WithLogger(logger))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Catalog:   lister,
		Backups:   backups,
		Restores:  restores,
		Scheduler: scheduler.NewScheduler(cfg.Schedule, backups, store, logger),
	}
}

// AdminServer builds the HTTP front end over the app's components
func (a *App) AdminServer() *adminserver.Server {
	return adminserver.NewServer(adminserver.Deps{
		Store:    a.Store,
		Catalog:  a.Catalog,
		Backups:  a.Backups,
		Restores: a.Restores,
		Logger:   a.Logger,
	})
}

// newLogger configures logrus the way every command expects
func newLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
