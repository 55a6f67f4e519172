// Package config holds ProofGate configuration loaded from
// .proofgate/config.json with environment-variable overrides. This is the
// single source of truth for configuration; components receive values through
// construction, never by reading files themselves.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all ProofGate configuration.
type Config struct {
	// LLM provider selection (anthropic, gemini)
	Provider string `json:"provider,omitempty"`

	// API keys per provider. APIKey is the legacy single-key field and is used
	// for whichever provider is selected when the specific key is empty.
	APIKey          string `json:"api_key,omitempty"`
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty"`
	GeminiAPIKey    string `json:"gemini_api_key,omitempty"`

	// Optional model override.
	Model string `json:"model,omitempty"`

	// DataDir holds the docs directory and the trace database.
	DataDir string `json:"data_dir,omitempty"`

	// DeterministicMode enables cache lookup and replay of identical inputs.
	DeterministicMode *bool `json:"deterministic_mode,omitempty"`

	// MaxRetries is the citation-correction retry budget per agent.
	MaxRetries *int `json:"max_retries,omitempty"`

	// ListenAddr is the HTTP API bind address.
	ListenAddr string `json:"listen_addr,omitempty"`

	// Retrieval limits per document type (first-N retriever).
	Retrieval RetrievalConfig `json:"retrieval,omitempty"`

	// Logging controls the categorized debug logger.
	Logging LoggingConfig `json:"logging,omitempty"`
}

// RetrievalConfig bounds how many excerpts per document type reach a run.
type RetrievalConfig struct {
	PolicyLimit   int `json:"policy_limit,omitempty"`
	ContractLimit int `json:"contract_limit,omitempty"`
	EvidenceLimit int `json:"evidence_limit,omitempty"`
}

// LoggingConfig mirrors the logging package's expectations.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode,omitempty"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level,omitempty"`
}

// Defaults applied when the config file or a field is absent.
const (
	DefaultDataDir    = "data"
	DefaultListenAddr = ":8080"
	DefaultMaxRetries = 1

	DefaultPolicyLimit   = 3
	DefaultContractLimit = 3
	DefaultEvidenceLimit = 2
)

// DefaultPath returns the default config file path under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".proofgate", "config.json")
}

// Load reads the config file at path, applies environment overrides, and
// fills defaults. A missing file is not an error; env vars alone can carry a
// full configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to env + defaults.
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
// Priority for provider detection when unset: ANTHROPIC_API_KEY then
// GEMINI_API_KEY.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PROOFGATE_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.AnthropicAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("PROOFGATE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("PROOFGATE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PROOFGATE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		switch {
		case c.AnthropicAPIKey != "" || c.APIKey != "":
			c.Provider = "anthropic"
		case c.GeminiAPIKey != "":
			c.Provider = "gemini"
		}
	}
	if c.APIKey == "" {
		switch c.Provider {
		case "anthropic":
			c.APIKey = c.AnthropicAPIKey
		case "gemini":
			c.APIKey = c.GeminiAPIKey
		}
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.DeterministicMode == nil {
		c.DeterministicMode = boolPtr(true)
	}
	if c.MaxRetries == nil {
		c.MaxRetries = intPtr(DefaultMaxRetries)
	}
	if c.Retrieval.PolicyLimit <= 0 {
		c.Retrieval.PolicyLimit = DefaultPolicyLimit
	}
	if c.Retrieval.ContractLimit <= 0 {
		c.Retrieval.ContractLimit = DefaultContractLimit
	}
	if c.Retrieval.EvidenceLimit <= 0 {
		c.Retrieval.EvidenceLimit = DefaultEvidenceLimit
	}
}

// Deterministic reports whether replay mode is on.
func (c *Config) Deterministic() bool {
	return c.DeterministicMode == nil || *c.DeterministicMode
}

// RetryBudget returns the citation-correction retry budget.
func (c *Config) RetryBudget() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

// TraceDBPath returns the SQLite path under the data directory.
func (c *Config) TraceDBPath() string {
	return filepath.Join(c.DataDir, "traces.db")
}

// DocsDir returns the documents directory under the data directory.
func (c *Config) DocsDir() string {
	return filepath.Join(c.DataDir, "docs")
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
