package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestReloaderInvokesOnReloadAfterFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, "log_level: info\n")

	reloaded := make(chan *Config, 1)
	r, err := NewReloader(path, nil, func(cfg *Config) { reloaded <- cfg }, nil)
	require.NoError(t, err)
	r.Start()
	defer r.Stop()

	writeTestConfig(t, path, "log_level: debug\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.LogLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}

func TestReloaderReportsErrorOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, "log_level: info\n")

	errs := make(chan error, 1)
	r, err := NewReloader(path, nil, nil, func(err error) { errs <- err })
	require.NoError(t, err)
	r.Start()
	defer r.Stop()

	writeTestConfig(t, path, "loggers:\n  - name: broken\n    driver: nonexistent\n")

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}
}

func TestReloaderStopClosesWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, "log_level: info\n")

	r, err := NewReloader(path, nil, nil, nil)
	require.NoError(t, err)
	r.Start()

	require.NoError(t, r.Stop())
}
