package agents

import (
	"fmt"

	"proofgate/internal/config"
)

// NewClientFromConfig builds the configured LLM provider client.
// Supported providers: anthropic, gemini.
func NewClientFromConfig(cfg *config.Config) (LLMClient, error) {
	switch cfg.Provider {
	case "anthropic", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("no Anthropic API key configured")
		}
		anthCfg := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.Model != "" {
			anthCfg.Model = cfg.Model
		}
		return NewAnthropicClientWithConfig(anthCfg), nil
	case "gemini":
		return NewGeminiClient(cfg.APIKey, cfg.Model)
	}
	return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
}
