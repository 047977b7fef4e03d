package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
repository_root: /data/repos
ssh:
  listen_addr: ":2222"
lfs:
  root: /data/lfs
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.RateLimit.MaxAttempts)
	require.Equal(t, 5*time.Minute, cfg.RateLimit.Window.Duration)
	require.Equal(t, 90*time.Second, cfg.Actions.HeartbeatTimeout.Duration)
	require.Equal(t, 24*time.Hour, cfg.LFS.GCMinAge.Duration)
	require.Equal(t, "filesystem", cfg.LFS.Backend)
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
repository_root: /data/repos
ssh:
  listen_addr: ":2222"
lfs:
  root: /data/lfs
rate_limit:
  max_attempts: 5
  window: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window.Duration)
}

func TestLoadRejectsMissingRepositoryRoot(t *testing.T) {
	path := writeConfig(t, `
ssh:
  listen_addr: ":2222"
lfs:
  root: /data/lfs
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsS3BackendWithoutBucket(t *testing.T) {
	path := writeConfig(t, `
repository_root: /data/repos
ssh:
  listen_addr: ":2222"
lfs:
  backend: s3
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
repository_root: /data/repos
ssh:
  listen_addr: ":2222"
lfs:
  backend: azure
`)
	_, err := Load(path)
	require.Error(t, err)
}
