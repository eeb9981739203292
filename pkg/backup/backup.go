// Package backup implements MySQL backup operations.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/supporttools/GoSQLRestore/pkg/catalog"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/lock"
	"github.com/supporttools/GoSQLRestore/pkg/metrics"
	"github.com/supporttools/GoSQLRestore/pkg/mysql"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/runner"
)

// maxNameAttempts bounds the same-second suffixes tried for one artifact
const maxNameAttempts = 1000

const failedMessage = "Backup failed. Check your credentials or database name."

// Uploader copies a finished artifact off-site
type Uploader interface {
	Upload(ctx context.Context, path, database string) (string, error)
}

// Manager handles backup operations
type Manager struct {
	backupDir string
	tools     config.ToolsConfig
	runner    runner.Runner
	locks     *lock.Keyed
	uploader  Uploader
	now       func() time.Time
	logger    *logrus.Logger
}

// Option customizes a Manager
type Option func(*Manager)

// WithClock replaces time.Now, used for artifact names
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocks shares a lock set with other orchestrators
func WithLocks(locks *lock.Keyed) Option {
	return func(m *Manager) { m.locks = locks }
}

// WithUploader enables the off-site copy after each successful backup
func WithUploader(u Uploader) Option {
	return func(m *Manager) { m.uploader = u }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a new backup manager
func NewManager(cfg config.AppConfig, r runner.Runner, opts ...Option) *Manager {
	m := &Manager{
		backupDir: cfg.BackupDirectory,
		tools:     cfg.Tools,
		runner:    r,
		locks:     lock.NewKeyed(),
		now:       time.Now,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backup dumps databaseName into a new artifact in the backup directory.
// Success is decided by mysqldump's exit status alone. On failure the
// partial file is removed so it never shows up in the catalog.
func (m *Manager) Backup(ctx context.Context, databaseName string, conn connstore.ConnectionConfig) (catalog.Artifact, error) {
	if databaseName == "" {
		return catalog.Artifact{}, outcome.ValidationError("Please select a database to backup.")
	}
	if err := mysql.ValidateIdentifier(databaseName); err != nil {
		return catalog.Artifact{}, err
	}

	log := m.logger.WithFields(logrus.Fields{
		"run_id":   uuid.New().String(),
		"database": databaseName,
	})

	unlock := m.locks.Lock(databaseName)
	defer unlock()

	startTime := time.Now()
	artifact, err := m.dump(ctx, databaseName, conn, log)
	metrics.BackupCount.WithLabelValues(databaseName, metrics.StatusLabel(err)).Inc()
	if err != nil {
		log.WithError(err).Error("Backup failed")
		return catalog.Artifact{}, err
	}

	metrics.BackupDuration.WithLabelValues(databaseName).Observe(time.Since(startTime).Seconds())
	metrics.BackupSize.WithLabelValues(databaseName, "local").Set(float64(artifact.Size))
	metrics.LastBackupTimestamp.WithLabelValues(databaseName).Set(float64(artifact.CreatedAt.Unix()))
	log.WithFields(logrus.Fields{
		"artifact": artifact.FilePath,
		"size":     artifact.Size,
	}).Info("Backup completed")

	if m.uploader != nil {
		if key, err := m.uploader.Upload(ctx, artifact.FilePath, databaseName); err != nil {
			log.WithError(err).Warn("Off-site copy failed; local artifact kept")
		} else {
			log.WithField("key", key).Debug("Off-site copy stored")
		}
	}

	return artifact, nil
}

func (m *Manager) dump(ctx context.Context, databaseName string, conn connstore.ConnectionConfig, log *logrus.Entry) (catalog.Artifact, error) {
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return catalog.Artifact{}, outcome.BackupError("Backup directory is not writable.", "", err)
	}

	createdAt := m.now().Truncate(time.Second)
	file, path, err := m.createArtifactFile(databaseName, createdAt)
	if err != nil {
		return catalog.Artifact{}, outcome.BackupError(failedMessage, "", err)
	}

	if m.tools.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.tools.CommandTimeout)
		defer cancel()
	}

	provider := mysql.NewProvider(conn, m.tools, nil)
	cmd := provider.DumpCommand(databaseName, file)
	log.WithField("command", cmd.String()).Debug("Running dump")

	_, runErr := m.runner.Run(ctx, cmd)
	closeErr := file.Close()

	if runErr == nil && closeErr != nil {
		runErr = fmt.Errorf("failed to close artifact: %w", closeErr)
	}
	if runErr != nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("artifact", path).Warn("Failed to remove partial artifact")
		}
		return catalog.Artifact{}, classifyRunError(runErr)
	}

	artifact := catalog.Artifact{
		Filename:     filepath.Base(path),
		DatabaseName: databaseName,
		FilePath:     path,
		CreatedAt:    createdAt,
	}
	if info, err := os.Stat(path); err == nil {
		artifact.Size = info.Size()
	}
	return artifact, nil
}

// createArtifactFile creates the artifact exclusively. Same-second
// collisions get a numeric suffix instead of overwriting.
func (m *Manager) createArtifactFile(databaseName string, createdAt time.Time) (*os.File, string, error) {
	for seq := 0; seq < maxNameAttempts; seq++ {
		path := filepath.Join(m.backupDir, catalog.ArtifactFileName(databaseName, createdAt, seq))
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			return file, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("failed to create artifact %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free artifact name for %s at %s", databaseName, createdAt.Format(catalog.TimestampLayout))
}

func classifyRunError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return outcome.TimeoutError("Backup timed out.", err)
	}
	if errors.Is(err, context.Canceled) {
		return outcome.BackupError("Backup cancelled.", "", err)
	}

	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return outcome.BackupError(failedMessage, exitErr.Stderr, err)
	}
	return outcome.BackupError(failedMessage, "", err)
}
