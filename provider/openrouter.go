package provider

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/franktheglock/openllm/model"
)

const (
	openRouterDefaultModel = "openai/gpt-4o"
	// defaultContextWindow is used for "auto" when nothing is known about a model.
	defaultContextWindow = 4096
)

// openRouterContextWindows covers common models until metadata has been fetched.
var openRouterContextWindows = map[string]int{
	"openai/gpt-4o":                            128000,
	"openai/gpt-4-turbo":                       128000,
	"openai/gpt-3.5-turbo":                     16385,
	"anthropic/claude-3-5-sonnet-20241022":     200000,
	"anthropic/claude-3-opus-20240229":         200000,
	"anthropic/claude-3-haiku-20240307":        200000,
	"google/gemini-pro-1.5":                    1000000,
	"google/gemini-flash-1.5":                  1000000,
	"meta-llama/llama-3.2-90b-vision-instruct": 128000,
	"mistralai/mixtral-8x22b-instruct":         64000,
}

var openRouterDefaultModels = []string{
	"openai/gpt-4o",
	"openai/gpt-4-turbo",
	"openai/gpt-3.5-turbo",
	"anthropic/claude-3-5-sonnet-20241022",
	"anthropic/claude-3-opus-20240229",
	"anthropic/claude-3-haiku-20240307",
	"google/gemini-pro-1.5",
	"google/gemini-flash-1.5",
	"meta-llama/llama-3.2-90b-vision-instruct",
	"mistralai/mixtral-8x22b-instruct",
}

// OpenRouterProvider connects to OpenRouter, which is OpenAI-compatible.
// On top of the shared adapter it resolves "auto" max tokens from model
// metadata, prices calls from that metadata and disables response caching.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates the OpenRouter adapter. The API key is required.
func NewOpenRouterProvider(cfg Config) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, configError(string(ProviderTypeOpenRouter), "OpenRouter API key is required (set OPENROUTER_API_KEY)")
	}

	fallback := staticModels(string(ProviderTypeOpenRouter), openRouterDefaultModels...)
	for i := range fallback {
		fallback[i].ContextLength = openRouterContextWindows[fallback[i].ID]
	}

	base := newOpenAICompatible(string(ProviderTypeOpenRouter), cfg, openRouterBaseURL, openRouterDefaultModel, fallback)
	p := &OpenRouterProvider{OpenAIProvider: base}

	base.catalog = NewCatalog(base.name, p.fetchModels, fallback, DefaultCatalogTTL, cfg.Now)
	base.cost = p.estimateCost
	base.maxTokens = p.resolveMaxTokens
	base.headers = http.Header{
		"Cache-Control": {"no-cache, no-store, must-revalidate"},
	}
	return p, nil
}

// ContextWindow returns the context window for modelID from cached metadata,
// then the static table, then a conservative default.
func (p *OpenRouterProvider) ContextWindow(modelID string) int {
	if info, ok := p.catalog.Lookup(modelID); ok && info.ContextLength > 0 {
		return info.ContextLength
	}
	if window, ok := openRouterContextWindows[modelID]; ok {
		return window
	}
	return defaultContextWindow
}

func (p *OpenRouterProvider) resolveMaxTokens(modelName string, policy model.MaxTokens) int {
	if !policy.Auto {
		return policy.Resolve(model.DefaultMaxTokens)
	}
	window := p.ContextWindow(modelName)
	slog.Debug("resolved auto max tokens",
		"component", "provider", "provider", p.name, "model", modelName, "max_tokens", window)
	return window
}

// estimateCost uses per-token pricing from cached metadata when known and a
// flat per-1K rate otherwise.
func (p *OpenRouterProvider) estimateCost(usage model.Usage, modelName string) float64 {
	if info, ok := p.catalog.Lookup(modelName); ok && (info.PromptPrice > 0 || info.CompletionPrice > 0) {
		return float64(usage.PromptTokens)*info.PromptPrice +
			float64(usage.CompletionTokens)*info.CompletionPrice
	}
	return float64(usage.TotalTokens) / 1000 * openRouterFlatRate
}

func (p *OpenRouterProvider) fetchModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, classifyError(p.name, err)
	}

	result := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		raw := m.RawJSON()
		name := gjson.Get(raw, "name").String()
		if name == "" {
			name = m.ID
		}
		info := model.ModelInfo{
			ID:              m.ID,
			Name:            name,
			Provider:        p.name,
			ContextLength:   int(gjson.Get(raw, "context_length").Int()),
			PromptPrice:     gjson.Get(raw, "pricing.prompt").Float(),
			CompletionPrice: gjson.Get(raw, "pricing.completion").Float(),
		}
		if info.ContextLength == 0 {
			info.ContextLength = defaultContextWindow
		}
		result = append(result, info)
	}
	return result, nil
}
