package backup

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supporttools/GoSQLRestore/pkg/catalog"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/connstore"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
	"github.com/supporttools/GoSQLRestore/pkg/runner"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
}

func testConfig(dir string) config.AppConfig {
	return config.AppConfig{
		BackupDirectory: dir,
		Tools: config.ToolsConfig{
			DumpBinary:     "mysqldump",
			ClientBinary:   "mysql",
			CommandTimeout: time.Minute,
			ConnectTimeout: time.Second,
		},
	}
}

// dumpWriting simulates a successful mysqldump producing body
func dumpWriting(body string) func(context.Context, runner.Command) (runner.Result, error) {
	return func(_ context.Context, cmd runner.Command) (runner.Result, error) {
		_, err := io.WriteString(cmd.Stdout, body)
		return runner.Result{}, err
	}
}

type recordingUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (u *recordingUploader) Upload(_ context.Context, path, database string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, path)
	if u.err != nil {
		return "", u.err
	}
	return database + "/" + path, nil
}

func TestBackup_Naming(t *testing.T) {
	dir := t.TempDir()
	rec := &runner.Recorder{Handler: dumpWriting("-- MySQL dump\n")}
	mgr := NewManager(testConfig(dir), rec, WithClock(fixedClock))

	artifact, err := mgr.Backup(context.Background(), "sales", connstore.Default())

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(artifact.FilePath, "sales_2024-01-02_03-04-05.sql"), artifact.FilePath)
	assert.Equal(t, "sales_2024-01-02_03-04-05.sql", artifact.Filename)
	assert.Equal(t, "sales", artifact.DatabaseName)
	assert.Equal(t, int64(len("-- MySQL dump\n")), artifact.Size)
	assert.True(t, fixedClock().Equal(artifact.CreatedAt))

	lister := catalog.NewLister(dir, config.ToolsConfig{}, nil, nil)
	assert.Equal(t, []string{"sales_2024-01-02_03-04-05.sql"}, lister.ListBackupFiles())
}

func TestBackup_InvocationCarriesCredentialsInEnvironment(t *testing.T) {
	rec := &runner.Recorder{Handler: dumpWriting("")}
	mgr := NewManager(testConfig(t.TempDir()), rec, WithClock(fixedClock))

	conn := connstore.ConnectionConfig{Host: "db.internal", Username: "backup", Password: "hunter2"}
	_, err := mgr.Backup(context.Background(), "sales", conn)
	require.NoError(t, err)

	calls := rec.Invocations()
	require.Len(t, calls, 1)
	assert.Equal(t, "mysqldump", calls[0].Name)
	assert.Contains(t, calls[0].Args, "--host=db.internal")
	assert.Contains(t, calls[0].Args, "--user=backup")
	assert.Equal(t, "sales", calls[0].Args[len(calls[0].Args)-1])
	assert.NotContains(t, strings.Join(calls[0].Args, " "), "hunter2")
	assert.Contains(t, calls[0].Env, "MYSQL_PWD=hunter2")
}

func TestBackup_Validation(t *testing.T) {
	rec := &runner.Recorder{}
	mgr := NewManager(testConfig(t.TempDir()), rec)

	for _, name := range []string{"", "sales; rm -rf /", "../etc", "-all-databases"} {
		_, err := mgr.Backup(context.Background(), name, connstore.Default())
		assert.True(t, errors.Is(err, outcome.ErrValidation), name)
	}
	assert.Empty(t, rec.Invocations())
}

func TestBackup_DumpFailureLeavesNoArtifact(t *testing.T) {
	dir := t.TempDir()
	rec := &runner.Recorder{Handler: func(_ context.Context, cmd runner.Command) (runner.Result, error) {
		io.WriteString(cmd.Stdout, "-- partial")
		return runner.Result{ExitCode: 2, Stderr: "Access denied for user 'root'@'localhost'"},
			&runner.ExitError{Command: cmd.Name, Code: 2, Stderr: "Access denied for user 'root'@'localhost'"}
	}}
	uploader := &recordingUploader{}
	mgr := NewManager(testConfig(dir), rec, WithClock(fixedClock), WithUploader(uploader))

	_, err := mgr.Backup(context.Background(), "sales", connstore.Default())

	require.Error(t, err)
	assert.True(t, errors.Is(err, outcome.ErrBackup))
	o := outcome.FromError(err)
	assert.Equal(t, "Backup failed. Check your credentials or database name.", o.Message)
	assert.Contains(t, o.Detail, "Access denied")

	lister := catalog.NewLister(dir, config.ToolsConfig{}, nil, nil)
	assert.Empty(t, lister.ListBackupFiles())
	assert.Empty(t, uploader.paths)
}

func TestBackup_SameSecondCollisionGetsSuffix(t *testing.T) {
	dir := t.TempDir()
	rec := &runner.Recorder{Handler: dumpWriting("-- dump")}
	mgr := NewManager(testConfig(dir), rec, WithClock(fixedClock))

	first, err := mgr.Backup(context.Background(), "sales", connstore.Default())
	require.NoError(t, err)
	second, err := mgr.Backup(context.Background(), "sales", connstore.Default())
	require.NoError(t, err)

	assert.Equal(t, "sales_2024-01-02_03-04-05.sql", first.Filename)
	assert.Equal(t, "sales_2024-01-02_03-04-05-1.sql", second.Filename)
	assert.Equal(t, "sales", catalog.DatabaseNameFromArtifact(second.Filename))
}

func TestBackup_Timeout(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Tools.CommandTimeout = 20 * time.Millisecond

	rec := &runner.Recorder{Handler: func(ctx context.Context, _ runner.Command) (runner.Result, error) {
		<-ctx.Done()
		return runner.Result{ExitCode: -1}, ctx.Err()
	}}
	mgr := NewManager(cfg, rec, WithClock(fixedClock))

	_, err := mgr.Backup(context.Background(), "sales", connstore.Default())

	require.Error(t, err)
	assert.True(t, errors.Is(err, outcome.ErrTimeout))
	assert.Empty(t, catalog.NewLister(dir, config.ToolsConfig{}, nil, nil).ListBackupFiles())
}

func TestBackup_UploadsAfterSuccess(t *testing.T) {
	rec := &runner.Recorder{Handler: dumpWriting("-- dump")}
	uploader := &recordingUploader{}
	mgr := NewManager(testConfig(t.TempDir()), rec, WithClock(fixedClock), WithUploader(uploader))

	artifact, err := mgr.Backup(context.Background(), "sales", connstore.Default())

	require.NoError(t, err)
	assert.Equal(t, []string{artifact.FilePath}, uploader.paths)
}

func TestBackup_UploadFailureIsNotFatal(t *testing.T) {
	rec := &runner.Recorder{Handler: dumpWriting("-- dump")}
	uploader := &recordingUploader{err: errors.New("bucket unreachable")}
	mgr := NewManager(testConfig(t.TempDir()), rec, WithClock(fixedClock), WithUploader(uploader))

	_, err := mgr.Backup(context.Background(), "sales", connstore.Default())
	assert.NoError(t, err)
}

func TestBackup_SameDatabaseIsSerialized(t *testing.T) {
	var active, maxActive int32
	rec := &runner.Recorder{Handler: func(_ context.Context, _ runner.Command) (runner.Result, error) {
		n := atomic.AddInt32(&active, 1)
		if n > atomic.LoadInt32(&maxActive) {
			atomic.StoreInt32(&maxActive, n)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return runner.Result{}, nil
	}}
	mgr := NewManager(testConfig(t.TempDir()), rec, WithClock(fixedClock))

	var wg sync.WaitGroup
	names := make(chan string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			artifact, err := mgr.Backup(context.Background(), "sales", connstore.Default())
			if assert.NoError(t, err) {
				names <- artifact.Filename
			}
		}()
	}
	wg.Wait()
	close(names)

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))

	seen := map[string]bool{}
	for name := range names {
		assert.False(t, seen[name], "duplicate artifact name %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, 4)
}
