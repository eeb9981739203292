package connstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supporttools/GoSQLRestore/pkg/outcome"
)

func TestLoad_CreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "db_config.yaml")
	store := NewStore(path, nil)

	cfg := store.Load()

	assert.Equal(t, Default(), cfg)
	info, err := os.Stat(path)
	require.NoError(t, err, "first load should create the backing file")
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoad_Idempotent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "db_config.yaml"), nil)

	first := store.Load()
	second := store.Load()

	assert.Equal(t, first, second)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "db_config.yaml"), nil)

	tests := []ConnectionConfig{
		{Host: "db.internal", Username: "backup", Password: "s3cr3t"},
		{Host: "", Username: "", Password: ""},
		{Host: "10.0.0.5", Username: "root", Password: "with: colon # and hash"},
	}

	for _, want := range tests {
		require.NoError(t, store.Save(want))
		assert.Equal(t, want, store.Load())
	}
}

func TestSave_ReplacesWholesale(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "db_config.yaml"), nil)

	require.NoError(t, store.Save(ConnectionConfig{Host: "a", Username: "b", Password: "c"}))
	require.NoError(t, store.Save(ConnectionConfig{Host: "x"}))

	assert.Equal(t, ConnectionConfig{Host: "x"}, store.Load())
}

func TestLoad_CorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: [unterminated"), 0600))

	store := NewStore(path, nil)
	assert.Equal(t, Default(), store.Load())

	// The regenerated file must now be readable
	assert.Equal(t, Default(), store.Load())
}

func TestSave_FailureIsConfigError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store := NewStore(filepath.Join(blocker, "db_config.yaml"), nil)
	err := store.Save(Default())

	require.Error(t, err)
	assert.True(t, errors.Is(err, outcome.ErrConfig))
}
