// Package provider adapts LLM vendor APIs to the uniform model.Provider contract.
//
// The orchestrator speaks only model.Provider. Each adapter in this package
// converts the provider-agnostic conversation to its vendor's wire shape,
// normalizes tool calls coming back, and classifies failures into the error
// kinds in errors.go.
//
// # Architecture
//
//   - model.Provider defines the contract (interface)
//   - OpenAIProvider covers OpenAI and any OpenAI-compatible endpoint (custom, LM Studio)
//   - OpenRouterProvider adds "auto" max-tokens resolution and router metadata
//   - AnthropicProvider, GeminiProvider and OllamaProvider wrap their vendor SDKs
//   - Registry maps provider names to constructors; NewProvider is the default entry point
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:   provider.ProviderTypeOpenAI,
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	if err != nil {
//	    // configuration error: missing key or unknown provider
//	}
//	resp, err := p.Complete(ctx, messages, model.CompletionOptions{Model: "gpt-4o-mini"})
package provider

import (
	"net/http"
	"time"
)

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
	ProviderTypeGemini     ProviderType = "gemini"
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeCustom     ProviderType = "custom"
	ProviderTypeLMStudio   ProviderType = "lmstudio"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string // Default model when a call does not name one
	APIKey  string // Unused for Ollama and LM Studio

	// HTTPClient overrides the transport used by SDK clients.
	HTTPClient *http.Client
	// Now overrides the catalogue cache clock.
	Now func() time.Time
}

// Default sampling settings.
const (
	DefaultTemperature = 0.7
	DefaultCatalogTTL  = time.Hour
)
