package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/config"
)

func TestDefault_MatchesRunnerAndAgentDefaults(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 300*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 10, cfg.Runner.MaxIterations)
	assert.Equal(t, 200, cfg.Runner.MaxHistorySize)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Runner.MaxIterations)
}

func TestLoad_ParsesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
runner:
  timeout: 45s
  max_iterations: 4
generation:
  temperature: 0.2
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 4, cfg.Runner.MaxIterations)
	assert.InDelta(t, 0.2, cfg.Generation.Temperature, 0.0001)
}

func TestLoad_EnvOverridesLogLevelAndCredentials(t *testing.T) {
	t.Setenv("ADK_LOG_LEVEL", "warn")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "sk-test-123", cfg.ProviderCredential("anthropic"))
}

func TestApplyOverrides_DecodesLooseMapOntoExistingConfig(t *testing.T) {
	cfg := config.Default()
	err := cfg.ApplyOverrides(map[string]any{
		"runner": map[string]any{
			"max_iterations":   "6",
			"max_history_size": 50,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Runner.MaxIterations)
	assert.Equal(t, 50, cfg.Runner.MaxHistorySize)
	assert.Equal(t, 300*time.Second, cfg.Runner.Timeout, "unspecified fields survive the overlay")
}
