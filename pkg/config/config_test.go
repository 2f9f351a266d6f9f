package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_dsn: postgres://localhost/remud\nworker_pool_size: 8\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/remud", cfg.DatabaseDSN)
	assert.Equal(t, 8, cfg.WorkerPoolSize)
	assert.Equal(t, 15*time.Millisecond, cfg.TickInterval, "unset fields keep the default")
}

func TestLoadRequiresDatabaseDSN(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_dsn: postgres://localhost/remud\n"), 0644))

	t.Setenv("REMUD_DATABASE_DSN", "postgres://env/remud")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/remud", cfg.DatabaseDSN)
}
