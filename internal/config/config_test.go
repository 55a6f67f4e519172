package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PROOFGATE_PROVIDER", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"PROOFGATE_MODEL", "PROOFGATE_DATA_DIR", "PROOFGATE_LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.True(t, cfg.Deterministic())
	assert.Equal(t, DefaultMaxRetries, cfg.RetryBudget())
	assert.Equal(t, DefaultPolicyLimit, cfg.Retrieval.PolicyLimit)
	assert.Equal(t, DefaultContractLimit, cfg.Retrieval.ContractLimit)
	assert.Equal(t, DefaultEvidenceLimit, cfg.Retrieval.EvidenceLimit)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"provider": "anthropic",
		"anthropic_api_key": "file-key",
		"data_dir": "/tmp/pg-data",
		"listen_addr": ":9999",
		"deterministic_mode": false,
		"max_retries": 3,
		"retrieval": {"policy_limit": 5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "file-key", cfg.APIKey, "selected provider key promoted to APIKey")
	assert.Equal(t, "/tmp/pg-data", cfg.DataDir)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.False(t, cfg.Deterministic())
	assert.Equal(t, 3, cfg.RetryBudget())
	assert.Equal(t, 5, cfg.Retrieval.PolicyLimit)
	assert.Equal(t, DefaultContractLimit, cfg.Retrieval.ContractLimit, "unset limits keep defaults")
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("ANTHROPIC_API_KEY selects anthropic when provider unset", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")

		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)

		assert.Equal(t, "anthropic", cfg.Provider)
		assert.Equal(t, "ant-key", cfg.APIKey)
	})

	t.Run("GEMINI_API_KEY selects gemini when provider unset", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)

		assert.Equal(t, "gemini", cfg.Provider)
		assert.Equal(t, "gem-key", cfg.APIKey)
	})

	t.Run("PROOFGATE_PROVIDER wins over key detection", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("PROOFGATE_PROVIDER", "gemini")

		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)

		assert.Equal(t, "gemini", cfg.Provider)
		assert.Equal(t, "gem-key", cfg.APIKey)
	})

	t.Run("env wins over file values", func(t *testing.T) {
		clearEnv(t)
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"data_dir": "file-dir", "listen_addr": ":1111"}`), 0644))

		t.Setenv("PROOFGATE_DATA_DIR", "env-dir")
		t.Setenv("PROOFGATE_LISTEN_ADDR", ":2222")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "env-dir", cfg.DataDir)
		assert.Equal(t, ":2222", cfg.ListenAddr)
	})
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/var/proofgate"}

	assert.Equal(t, filepath.Join("/var/proofgate", "traces.db"), cfg.TraceDBPath())
	assert.Equal(t, filepath.Join("/var/proofgate", "docs"), cfg.DocsDir())
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/ws", ".proofgate", "config.json"), DefaultPath("/ws"))
}
