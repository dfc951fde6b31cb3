package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "cs", cfg.KeyPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Query.StaleTime)
	assert.Equal(t, 10*time.Minute, cfg.Query.GCTime)
	assert.True(t, cfg.Realtime.Enabled)
	assert.Equal(t, "cs_session", cfg.Portal.CookieName)

	ec := cfg.EngineConfig()
	assert.True(t, ec.Metrics.Enabled)
	assert.Equal(t, 1, ec.Query.Retry)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONNECTSHARE_ADDR", "127.0.0.1:9999")
	t.Setenv("CONNECTSHARE_EMBEDDED_REDIS", "true")
	t.Setenv("CONNECTSHARE_LOG_LEVEL", "debug")
	t.Setenv("CONNECTSHARE_QUERY_STALE_TIME", "30s")
	t.Setenv("CONNECTSHARE_REALTIME_ENABLED", "false")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.True(t, cfg.EmbeddedRedis)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Query.StaleTime)
	assert.False(t, cfg.EngineConfig().Realtime.Enabled)
}

func TestLoadFromFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connectshare.yaml")
	content := `
addr: ":7000"
signing_key: "0123456789abcdef0123456789abcdef"
key_prefix: "clinic"
log:
  format: json
query:
  gc_time: 1m
portal:
  max_sessions: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("log-format", "", "")
	require.NoError(t, flags.Parse([]string{"--addr", ":7100"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.Addr, "a set flag wins over the file")
	assert.Equal(t, "json", cfg.Log.Format, "an unset flag keeps the file value")
	assert.Equal(t, time.Minute, cfg.Query.GCTime)
	assert.Equal(t, 8, cfg.Portal.MaxSessions)

	bc, err := cfg.BackendConfig()
	require.NoError(t, err)
	assert.Equal(t, "clinic", bc.KeyPrefix)
	assert.Len(t, bc.SigningKey, 32)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("CONNECTSHARE_LOG_FORMAT", "xml")
	_, err := Load("", nil)
	require.Error(t, err)

	t.Setenv("CONNECTSHARE_LOG_FORMAT", "text")
	t.Setenv("CONNECTSHARE_QUERY_RETRY", "-1")
	_, err = Load("", nil)
	require.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestBackendConfigRequiresSigningKey(t *testing.T) {
	cfg := &Config{SigningKey: "short"}
	_, err := cfg.BackendConfig()
	require.Error(t, err)
}
