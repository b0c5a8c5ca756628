package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, DefaultFile))
	require.NoError(t, err)

	assert.Equal(t, HandlerNone, cfg.Handler.Kind)
	assert.Equal(t, Duration(2*time.Minute), cfg.Handler.Timeout)
	assert.Equal(t, StoreFile, cfg.Store.Kind)
	assert.Equal(t, filepath.Join(dir, ".mnb/notebooks"), cfg.Store.Dir)
	assert.Equal(t, filepath.Join(dir, ".mnb/journal.db"), cfg.Journal.Path)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(`
handler:
  kind: remote
  timeout: 45s
remote:
  address: http://localhost:9000
store:
  kind: redis
  redis:
    addr: redis:6379
    ttl: 24h
journal:
  kind: memory
lsp:
  home: /opt/syntheto
  debug: true
log:
  level: debug
  file: logs/mnb.log
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, HandlerRemote, cfg.Handler.Kind)
	assert.Equal(t, Duration(45*time.Second), cfg.Handler.Timeout)
	assert.Equal(t, "http://localhost:9000", cfg.Remote.Address)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "mnb:", cfg.Store.Redis.Prefix, "unset fields keep their defaults")
	assert.Equal(t, Duration(24*time.Hour), cfg.Store.Redis.TTL)
	assert.Equal(t, "/opt/syntheto", cfg.LSP.Home)
	assert.True(t, cfg.LSP.Debug)
	assert.Equal(t, filepath.Join(dir, "logs/mnb.log"), cfg.Log.File)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed yaml", "handler: [oops"},
		{"bad duration", "handler:\n  timeout: soon\n"},
		{"unknown handler", "handler:\n  kind: telepathy\n"},
		{"remote without address", "handler:\n  kind: remote\n"},
		{"unknown store", "store:\n  kind: s3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFile)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := Load(path)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, path, cfgErr.Path)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MNB_HANDLER":        "remote",
		"MNB_REMOTE_ADDRESS": "http://exec:8080",
		"MNB_REDIS_ADDR":     "cache:6379",
		"SYNTHETO_HOME":      "/srv/syntheto",
		"MNB_STORE_KEY":      "a2V5",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, HandlerRemote, cfg.Handler.Kind)
	assert.Equal(t, "http://exec:8080", cfg.Remote.Address)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "/srv/syntheto", cfg.LSP.Home)
	assert.Equal(t, "a2V5", cfg.Store.EncryptionKey)
	assert.NoError(t, cfg.Validate())
}
