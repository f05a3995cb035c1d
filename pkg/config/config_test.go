package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"heapstore/pkg/dberror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heapstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 4096, cfg.Storage.PageSize)
	assert.Equal(t, 50, cfg.Storage.BufferPoolPages)
	assert.Equal(t, 500*time.Millisecond, cfg.Storage.LockTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
storage:
  buffer_pool_pages: 8
  lock_timeout: 50ms
logging:
  level: debug
  format: json
metrics:
  enabled: true
  listen_addr: 127.0.0.1:9191
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Storage.PageSize)
	assert.Equal(t, 8, cfg.Storage.BufferPoolPages)
	assert.Equal(t, 50*time.Millisecond, cfg.Storage.LockTimeout)
	assert.Equal(t, DefaultLockRetryInterval, cfg.Storage.LockRetryInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9191", cfg.Metrics.ListenAddr)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"tiny page", "storage:\n  page_size: 16\n"},
		{"no pages", "storage:\n  buffer_pool_pages: 0\n"},
		{"negative timeout", "storage:\n  lock_timeout: -1s\n"},
		{"metrics without addr", "metrics:\n  enabled: true\n  listen_addr: \"\"\n"},
		{"bad yaml", "storage: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, dberror.ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, dberror.ErrInvalidConfig)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
