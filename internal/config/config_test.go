package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernel.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FillsDefaultsForOmittedFields(t *testing.T) {
	path := writeConfigFile(t, `directory = "/var/data/simpledb"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/data/simpledb", cfg.Directory)
	assert.Equal(t, DefaultBlockSize, cfg.BlockSize)
	assert.Equal(t, DefaultBufferSize, cfg.BufferSize)
	assert.Equal(t, DefaultLogFileName, cfg.LogFileName)
	assert.Equal(t, 10*time.Second, cfg.BufferMaxWait())
	assert.Equal(t, 10*time.Second, cfg.LockMaxWait())
}

func TestLoad_HonorsExplicitValues(t *testing.T) {
	path := writeConfigFile(t, `
directory = "/var/data/simpledb"
block_size = 512
buffer_size = 16
log_file_name = "wal.log"
buffer_max_wait_ms = 2000
lock_max_wait_ms = 3000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.BlockSize)
	assert.Equal(t, 16, cfg.BufferSize)
	assert.Equal(t, "wal.log", cfg.LogFileName)
	assert.Equal(t, 2*time.Second, cfg.BufferMaxWait())
	assert.Equal(t, 3*time.Second, cfg.LockMaxWait())
}

func TestLoad_MissingDirectoryFails(t *testing.T) {
	path := writeConfigFile(t, `block_size = 512`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
