package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPrefix keeps the process environment out of loader tests.
const testPrefix = "RESPKV_TEST_"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader(WithEnvPrefix(testPrefix)).Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultDir, cfg.Dir)
	assert.Equal(t, DefaultDBFilename, cfg.DBFilename)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Zero(t, cfg.RateLimit)
	assert.Empty(t, cfg.Gateway.Addr)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "respkv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dir: /from/file
dbfilename: file.rdb
ratelimit: 10
log:
  level: debug
snapshot:
  bucket: snaps
`), 0o644))

	t.Setenv(testPrefix+"DBFILENAME", "env.rdb")
	t.Setenv(testPrefix+"LOG_FORMAT", "json")

	cfg, err := NewLoader(
		WithEnvPrefix(testPrefix),
		WithFile(path),
		WithOverrides(map[string]any{"dir": "/from/flag"}),
	).Load()
	require.NoError(t, err)

	assert.Equal(t, "/from/flag", cfg.Dir)
	assert.Equal(t, "env.rdb", cfg.DBFilename)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "snaps", cfg.Snapshot.Bucket)
	assert.Equal(t, "env.rdb", cfg.SnapshotObject())
	assert.Equal(t, DefaultAddr, cfg.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(WithEnvPrefix(testPrefix), WithFile("/does/not/exist.yaml")).Load()
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := NewLoader(
		WithEnvPrefix(testPrefix),
		WithOverrides(map[string]any{"dbfilename": ""}),
	).Load()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty dir", func(c *Config) { c.Dir = "" }},
		{"empty dbfilename", func(c *Config) { c.DBFilename = "" }},
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestSnapshotObject(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultDBFilename, cfg.SnapshotObject())
	cfg.Snapshot.Object = "backups/latest.rdb"
	assert.Equal(t, "backups/latest.rdb", cfg.SnapshotObject())
}

func TestWatcher_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "respkv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	var calls atomic.Int32
	w.OnChange(func(string) { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Writes to siblings are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	assert.Eventually(t, func() bool {
		return calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
