// Package metrics provides Prometheus metrics for MySQL backup and restore operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	// BackupCount tracks the total number of backups performed
	BackupCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mysql_backup_total",
		Help: "The total number of MySQL backups performed",
	}, []string{"database", "status"})

	// BackupDuration measures time taken to perform a backup
	BackupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mysql_backup_duration_seconds",
		Help:    "Time taken to perform MySQL backup",
		Buckets: prometheus.DefBuckets,
	}, []string{"database"})

	// BackupSize tracks size of the last backup file in bytes
	BackupSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mysql_backup_size_bytes",
		Help: "Size of the backup file in bytes",
	}, []string{"database", "storage"})

	// LastBackupTimestamp records timestamp of the last successful backup
	LastBackupTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mysql_backup_last_timestamp",
		Help: "Timestamp of the last successful backup",
	}, []string{"database"})

	// RestoreCount tracks the total number of restores performed
	RestoreCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mysql_restore_total",
		Help: "The total number of MySQL restores performed",
	}, []string{"database", "status"})

	// RestoreDuration measures time taken to apply an artifact
	RestoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mysql_restore_duration_seconds",
		Help:    "Time taken to perform MySQL restore",
		Buckets: prometheus.DefBuckets,
	}, []string{"database"})

	// DatabasesCreated counts targets created during restore
	DatabasesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mysql_restore_databases_created_total",
		Help: "The total number of databases created as restore targets",
	})

	// S3UploadCount tracks the total number of S3 uploads performed
	S3UploadCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mysql_backup_s3_upload_total",
		Help: "The total number of S3 uploads performed",
	}, []string{"database", "status"})

	// S3UploadDuration measures time taken to upload backup to S3
	S3UploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mysql_backup_s3_upload_duration_seconds",
		Help:    "Time taken to upload backup to S3",
		Buckets: prometheus.DefBuckets,
	}, []string{"database"})
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// StatusLabel maps an operation error to the status label
func StatusLabel(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
