// Package scheduler manages scheduled backup operations.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/supporttools/GoSQLRestore/pkg/catalog"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
)

// BackupRunner performs one backup
type BackupRunner interface {
	Backup(ctx context.Context, databaseName string, conn connstore.ConnectionConfig) (catalog.Artifact, error)
}

// ConfigLoader supplies the current connection settings
type ConfigLoader interface {
	Load() connstore.ConnectionConfig
}

// Scheduler runs backups of a fixed database list on a cron schedule
type Scheduler struct {
	cronScheduler *cron.Cron
	backups       BackupRunner
	connections   ConfigLoader
	cfg           config.ScheduleConfig
	logger        *logrus.Logger
	jobID         cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg config.ScheduleConfig, backups BackupRunner, connections ConfigLoader, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		cronScheduler: cron.New(),
		backups:       backups,
		connections:   connections,
		cfg:           cfg,
		logger:        logger,
	}
}

// Enabled reports whether a schedule is configured
func (s *Scheduler) Enabled() bool {
	return s.cfg.Cron != "" && len(s.cfg.Databases) > 0
}

// SetupJobs registers the backup job
func (s *Scheduler) SetupJobs() error {
	if !s.Enabled() {
		s.logger.Info("No backup schedule configured, scheduler idle")
		return nil
	}

	jobID, err := s.cronScheduler.AddFunc(s.cfg.Cron, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backups with cron expression '%s': %w", s.cfg.Cron, err)
	}
	s.jobID = jobID

	s.logger.WithFields(logrus.Fields{
		"cron":      s.cfg.Cron,
		"databases": s.cfg.Databases,
	}).Info("Scheduled backups")
	return nil
}

// Start begins the scheduled jobs
func (s *Scheduler) Start() {
	s.cronScheduler.Start()
	s.logger.Debug("Backup scheduler started")
}

// Stop halts the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cronScheduler.Stop()
	<-ctx.Done()
	s.logger.Debug("Backup scheduler stopped")
}

// RunOnce backs up every scheduled database, continuing past failures, and
// returns the number of failed backups.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	conn := s.connections.Load()

	failures := 0
	for _, database := range s.cfg.Databases {
		artifact, err := s.backups.Backup(ctx, database, conn)
		if err != nil {
			failures++
			s.logger.WithError(err).WithField("database", database).Error("Scheduled backup failed")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"database": database,
			"artifact": artifact.Filename,
		}).Info("Scheduled backup completed")
	}
	return failures
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() (time.Time, error) {
	if s.jobID == 0 {
		return time.Time{}, fmt.Errorf("no backup schedule configured")
	}
	return s.cronScheduler.Entry(s.jobID).Next, nil
}
