package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  host: 127.0.0.1
  port: 9090
risk:
  max_open_positions: 3
  max_consecutive_losses: 2
security:
  passphrase_env: TEST_RELAY_PASSPHRASE
`

func TestNewManagerDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 3, cfg.Risk.MaxOpenPositions)
	// Untouched defaults still apply.
	require.Equal(t, 900, cfg.Signal.TTLSeconds)
	require.Equal(t, 1000.0, cfg.Risk.EstimatedPricePerShare)
}

func TestGetPassphraseReadsEnvIndirection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	t.Setenv("TEST_RELAY_PASSPHRASE", "sw0rdfish")

	m, err := NewManager(path)
	require.NoError(t, err)
	require.Equal(t, "sw0rdfish", m.GetPassphrase())
}

func TestSetOnChangeCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	called := make(chan struct{}, 1)
	m.SetOnChange(func(c *Config) { called <- struct{}{} })
	m.reload()

	select {
	case <-called:
	default:
		t.Fatal("onChange callback was not invoked by reload")
	}
}
