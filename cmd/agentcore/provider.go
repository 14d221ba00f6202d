package main

import (
	"fmt"

	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/internal/provider/anthropic"
	"github.com/agentcore/runtime/internal/provider/openai"
)

// buildProvider constructs a provider.Provider for name from cfg's
// provider table. Only "anthropic" and "openai" are known; anything
// else is an error, since the core ships exactly these two adapters.
func buildProvider(name string, cfg config.ProviderConfig) (provider.Provider, error) {
	switch name {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		})
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: API key is required")
		}
		return openai.New(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (expected \"anthropic\" or \"openai\")", name)
	}
}
