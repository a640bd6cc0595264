package provider

import (
	"log/slog"

	"github.com/franktheglock/openllm/config"
	"github.com/franktheglock/openllm/model"
)

// InitializeProviders creates every enabled provider from the application
// configuration.
//
// API keys and default base URLs come from each provider's environment
// variables. A provider that fails to construct (typically a missing key) is
// logged and skipped so the bot can start with whatever is available.
//
// Example:
//
//	providers := provider.InitializeProviders(cfg)
//	// providers = {"openai": ..., "ollama": ...}
func InitializeProviders(cfg *config.Config) map[string]model.Provider {
	providers := make(map[string]model.Provider)

	for _, providerCfg := range cfg.EnabledProviders() {
		providerModel := providerCfg.Model
		if providerModel == "" && providerCfg.ID == cfg.LLM.DefaultProvider {
			providerModel = cfg.LLM.DefaultModel
		}

		p, err := NewProvider(Config{
			Type:    MapProviderIDToType(providerCfg.ID),
			BaseURL: providerCfg.BaseURL,
			Model:   providerModel,
		})
		if err != nil {
			slog.Warn("failed to initialize provider",
				"component", "provider", "provider", providerCfg.ID, "error", err)
			continue
		}

		providers[providerCfg.ID] = p
		slog.Info("initialized provider",
			"component", "provider", "provider", providerCfg.ID,
			"name", config.ProviderDisplayName(providerCfg.ID))
	}

	if len(providers) == 0 {
		slog.Warn("no LLM providers available; every turn will fail until one is configured",
			"component", "provider")
	}
	return providers
}
