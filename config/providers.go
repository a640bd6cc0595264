package config

import "strings"

// ProviderConfig enables a provider adapter and optionally points it at a
// non-default endpoint. Credentials come from the environment.
type ProviderConfig struct {
	ID      string `toml:"id"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Enabled bool   `toml:"enabled"`
}

// EnabledProviders returns the providers to initialize: every enabled
// [[providers]] entry, plus the default provider when it is not listed.
// A listed-but-disabled default provider stays disabled.
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	defaultListed := false
	for _, p := range c.Providers {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if id == strings.ToLower(c.LLM.DefaultProvider) {
			defaultListed = true
		}
		if !p.Enabled || id == "" {
			continue
		}
		p.ID = id
		out = append(out, p)
	}
	if !defaultListed && c.LLM.DefaultProvider != "" {
		out = append(out, ProviderConfig{
			ID:      strings.ToLower(c.LLM.DefaultProvider),
			Enabled: true,
		})
	}
	return out
}

// ProviderDisplayName returns the human-readable name for a provider ID.
func ProviderDisplayName(providerID string) string {
	switch strings.ToLower(providerID) {
	case "ollama":
		return "Ollama"
	case "openrouter":
		return "OpenRouter"
	case "anthropic":
		return "Anthropic"
	case "openai":
		return "OpenAI"
	case "gemini", "google":
		return "Google Gemini"
	case "lmstudio":
		return "LM Studio"
	case "custom":
		return "Custom endpoint"
	default:
		return providerID
	}
}
