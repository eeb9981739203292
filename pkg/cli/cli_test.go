package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/runner"
	"github.com/supporttools/GoSQLRestore/pkg/version"
)

type harness struct {
	dir    string
	runner *runner.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{dir: t.TempDir(), runner: &runner.Recorder{}}
}

func (h *harness) factory(_ context.Context, cfg config.AppConfig, logger *logrus.Logger) (*App, error) {
	cfg.BackupDirectory = filepath.Join(h.dir, "backup")
	cfg.ConnectionConfigFile = filepath.Join(h.dir, "config", "db_config.yaml")
	cfg.Schedule = config.ScheduleConfig{}
	cfg.ListenPort = "0"
	logger.SetOutput(&bytes.Buffer{})
	return newApp(cfg, logger, h.runner), nil
}

func (h *harness) run(args ...string) (string, error) {
	cmd := newRootCommand(version.Get(), h.factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(h.dir, "missing.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("version", "--short")

	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)
}

func TestConfigSetAndShow(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("config", "set", "--host", "db.internal:3307", "--username", "backup", "--password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration saved successfully!")

	out, err = h.run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "host:     db.internal:3307")
	assert.Contains(t, out, "username: backup")
	assert.Contains(t, out, "password: ********")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigShow_DefaultsOnFirstRun(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "host:     localhost")
	assert.Contains(t, out, "username: root")
	assert.Contains(t, out, "password: (not set)")
	assert.FileExists(t, filepath.Join(h.dir, "config", "db_config.yaml"))
}

func TestBackupCommand(t *testing.T) {
	h := newHarness(t)
	h.runner.Handler = func(_ context.Context, cmd runner.Command) (runner.Result, error) {
		_, err := cmd.Stdout.Write([]byte("-- dump\n"))
		return runner.Result{}, err
	}

	out, err := h.run("backup", "sales")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Backup created successfully! File: sales_"), out)

	out, err = h.run("artifacts")
	require.NoError(t, err)
	assert.Contains(t, out, "sales_")
	assert.Contains(t, out, ".sql")
}

func TestBackupCommand_Failure(t *testing.T) {
	h := newHarness(t)
	h.runner.Handler = func(_ context.Context, cmd runner.Command) (runner.Result, error) {
		return runner.Result{ExitCode: 2}, &runner.ExitError{Command: cmd.Name, Code: 2, Stderr: "Access denied"}
	}

	_, err := h.run("backup", "sales")

	require.Error(t, err)
	assert.True(t, errors.Is(err, outcome.ErrBackup))
	assert.Equal(t, "Backup failed. Check your credentials or database name.\nAccess denied", ErrorMessage(err))

	entries, _ := os.ReadDir(filepath.Join(h.dir, "backup"))
	assert.Empty(t, entries)
}

func TestBackupCommand_RequiresDatabase(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("backup")

	assert.Error(t, err)
	assert.Empty(t, h.runner.Invocations())
}

func TestRestoreCommand_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("restore", "--file", "sales_2024-01-02_03-04-05.sql")

	require.Error(t, err)
	assert.Equal(t, "Please select a target database and backup file to restore.", ErrorMessage(err))
	assert.Empty(t, h.runner.Invocations())
}

func TestRestoreCommand_NewRequiresName(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("restore", "--file", "sales_2024-01-02_03-04-05.sql", "--new", "")

	require.Error(t, err)
	assert.Equal(t, "Please enter a name for the new database.", ErrorMessage(err))
}

func TestRestoreCommand_TargetAndNewAreExclusive(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("restore", "--file", "x.sql", "--target", "sales", "--new", "archive")

	assert.Error(t, err)
	assert.Empty(t, h.runner.Invocations())
}

func TestConfigValidationFailure(t *testing.T) {
	t.Setenv("BACKUP_SCHEDULE", "@daily")
	t.Setenv("BACKUP_DATABASES", "")
	h := newHarness(t)

	_, err := h.run("artifacts")

	require.Error(t, err)
	assert.True(t, errors.Is(err, outcome.ErrConfig))
	assert.Contains(t, ErrorMessage(err), "BACKUP_DATABASES")
}

func TestServe_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	app, err := h.factory(context.Background(), config.FromEnvironment(), logrus.New())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, app) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestErrorMessage_PlainError(t *testing.T) {
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
}
