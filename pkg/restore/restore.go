// Package restore applies backup artifacts to MySQL databases, creating the
// target database first when it does not exist.
package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/lock"
	"github.com/supporttools/GoSQLRestore/pkg/metrics"
	"github.com/supporttools/GoSQLRestore/pkg/mysql"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/runner"
)

const failedMessage = "Restore failed. Check your credentials or backup file."

// State is a stage of a restore run. Runs move forward only:
// Validating -> EnsuringTarget -> Restoring -> Succeeded, or to Failed from any stage.
type State string

const (
	StateValidating     State = "validating"
	StateEnsuringTarget State = "ensuring_target"
	StateRestoring      State = "restoring"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
)

// StepError attaches the stage that failed to the underlying error
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("restore %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Target is either an existing database or one to be created
type Target struct {
	Database  string
	CreateNew bool
}

// ExistingTarget restores into a database chosen from the catalog
func ExistingTarget(name string) Target {
	return Target{Database: name}
}

// NewTarget restores into a database with a caller-supplied name
func NewTarget(name string) Target {
	return Target{Database: name, CreateNew: true}
}

// Catalog is what the restore needs from the catalog lister
type Catalog interface {
	DatabaseExists(ctx context.Context, conn connstore.ConnectionConfig, name string) (bool, error)
	ResolveArtifact(filename string) (string, error)
}

// Result describes a completed restore
type Result struct {
	Database     string
	ArtifactPath string
	Created      bool
}

// Manager handles restore operations
type Manager struct {
	catalog  Catalog
	tools    config.ToolsConfig
	runner   runner.Runner
	locks    *lock.Keyed
	logger   *logrus.Logger
	observer func(State)
}

// Option customizes a Manager
type Option func(*Manager)

// WithLocks shares a lock set with the backup manager
func WithLocks(locks *lock.Keyed) Option {
	return func(m *Manager) { m.locks = locks }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithObserver registers a callback invoked on every state change
func WithObserver(fn func(State)) Option {
	return func(m *Manager) { m.observer = fn }
}

// NewManager creates a new restore manager
func NewManager(cfg config.AppConfig, cat Catalog, r runner.Runner, opts ...Option) *Manager {
	m := &Manager{
		catalog: cat,
		tools:   cfg.Tools,
		runner:  r,
		locks:   lock.NewKeyed(),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore applies artifactFilename to the target database. Each stage fails
// fast; a database created in EnsuringTarget is left in place if the
// restore itself fails.
func (m *Manager) Restore(ctx context.Context, target Target, artifactFilename string, conn connstore.ConnectionConfig) (Result, error) {
	log := m.logger.WithFields(logrus.Fields{
		"run_id":   uuid.New().String(),
		"database": target.Database,
		"artifact": artifactFilename,
	})

	m.transition(StateValidating)
	if err := validate(target, artifactFilename); err != nil {
		return Result{}, m.fail(StateValidating, err, log)
	}

	unlock := m.locks.Lock(target.Database)
	defer unlock()

	m.transition(StateEnsuringTarget)
	res, err := m.ensureTarget(ctx, target, artifactFilename, conn, log)
	if err != nil {
		return Result{}, m.fail(StateEnsuringTarget, err, log)
	}

	m.transition(StateRestoring)
	startTime := time.Now()
	err = m.apply(ctx, res, conn)
	metrics.RestoreCount.WithLabelValues(target.Database, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return Result{}, m.fail(StateRestoring, err, log)
	}
	metrics.RestoreDuration.WithLabelValues(target.Database).Observe(time.Since(startTime).Seconds())

	m.transition(StateSucceeded)
	log.WithField("created", res.Created).Info("Restore completed")
	return res, nil
}

func validate(target Target, artifactFilename string) error {
	if target.CreateNew && target.Database == "" {
		return outcome.ValidationError("Please enter a name for the new database.")
	}
	if target.Database == "" || artifactFilename == "" {
		return outcome.ValidationError("Please select a target database and backup file to restore.")
	}
	return mysql.ValidateIdentifier(target.Database)
}

// ensureTarget checks existence, locates the artifact and only then creates
// a missing database, so a bad artifact name never leaves an empty database.
func (m *Manager) ensureTarget(ctx context.Context, target Target, artifactFilename string, conn connstore.ConnectionConfig, log *logrus.Entry) (Result, error) {
	exists, err := m.catalog.DatabaseExists(ctx, conn, target.Database)
	if err != nil {
		return Result{}, err
	}

	path, err := m.catalog.ResolveArtifact(artifactFilename)
	if err != nil {
		return Result{}, err
	}

	res := Result{Database: target.Database, ArtifactPath: path}
	if exists {
		return res, nil
	}

	provider := mysql.NewProvider(conn, m.tools, nil)
	cmd := provider.CreateDatabaseCommand(target.Database)
	log.WithField("command", cmd.String()).Debug("Creating target database")

	runCtx, cancel := m.commandContext(ctx)
	defer cancel()
	if _, err := m.runner.Run(runCtx, cmd); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, outcome.TimeoutError("Creating the target database timed out.", err)
		}
		return Result{}, outcome.RestoreError(
			fmt.Sprintf("Failed to create target database '%s'.", target.Database), stderrOf(err), err)
	}

	metrics.DatabasesCreated.Inc()
	log.Info("Created target database")
	res.Created = true
	return res, nil
}

func (m *Manager) apply(ctx context.Context, res Result, conn connstore.ConnectionConfig) error {
	input, err := os.Open(res.ArtifactPath)
	if err != nil {
		return outcome.NotFoundError("Selected backup file does not exist.")
	}
	defer input.Close()

	provider := mysql.NewProvider(conn, m.tools, nil)
	cmd := provider.RestoreCommand(res.Database, input)

	runCtx, cancel := m.commandContext(ctx)
	defer cancel()
	if _, err := m.runner.Run(runCtx, cmd); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return outcome.TimeoutError("Restore timed out.", err)
		case errors.Is(err, context.Canceled):
			return outcome.RestoreError("Restore cancelled.", "", err)
		default:
			return outcome.RestoreError(failedMessage, stderrOf(err), err)
		}
	}
	return nil
}

func (m *Manager) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.tools.CommandTimeout > 0 {
		return context.WithTimeout(ctx, m.tools.CommandTimeout)
	}
	return context.WithCancel(ctx)
}

func (m *Manager) transition(s State) {
	if m.observer != nil {
		m.observer(s)
	}
}

func (m *Manager) fail(step State, err error, log *logrus.Entry) error {
	m.transition(StateFailed)
	log.WithError(err).WithField("step", step).Error("Restore failed")
	return &StepError{Step: step, Err: err}
}

func stderrOf(err error) string {
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return ""
}
