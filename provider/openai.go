package provider

import (
	"context"
	"iter"
	"net/http"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/franktheglock/openllm/mcp"
	"github.com/franktheglock/openllm/model"
)

// Default endpoints and models for the OpenAI-compatible adapters.
const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	customBaseURL     = "http://localhost:8000/v1"
	lmStudioBaseURL   = "http://localhost:1234/v1"

	openAIDefaultModel   = "gpt-4o-mini"
	customDefaultModel   = "default"
	lmStudioDefaultModel = "local-model"
)

// OpenAIProvider implements model.Provider for OpenAI and any endpoint that
// speaks the OpenAI chat-completions protocol (custom servers, LM Studio).
// It uses the official OpenAI Go SDK with SDK-level retries disabled: every
// call is sent once and failures are returned to the caller.
type OpenAIProvider struct {
	name         string
	client       openai.Client
	defaultModel string
	catalog      *Catalog

	cost      func(usage model.Usage, modelName string) float64
	maxTokens func(modelName string, policy model.MaxTokens) int
	headers   http.Header

	// textToolCalls enables the leaked-call heuristic for local servers
	// whose models may write tool calls as plain text.
	textToolCalls bool
}

// NewOpenAIProvider creates the OpenAI adapter. The API key is required.
//
// Parameters:
//   - cfg.BaseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - cfg.APIKey: OpenAI API key (required)
//   - cfg.Model: default model (default: "gpt-4o-mini")
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, configError(string(ProviderTypeOpenAI), "OpenAI API key is required (set OPENAI_API_KEY)")
	}
	p := newOpenAICompatible(string(ProviderTypeOpenAI), cfg, openAIBaseURL, openAIDefaultModel,
		staticModels(string(ProviderTypeOpenAI),
			"gpt-4-turbo-preview", "gpt-4", "gpt-4-32k", "gpt-3.5-turbo", "gpt-3.5-turbo-16k"))
	p.cost = openAIPricing.Cost
	return p, nil
}

// NewCustomProvider creates an adapter for a self-hosted OpenAI-compatible
// endpoint. The API key is optional.
func NewCustomProvider(cfg Config) (*OpenAIProvider, error) {
	p := newOpenAICompatible(string(ProviderTypeCustom), cfg, customBaseURL, customDefaultModel,
		staticModels(string(ProviderTypeCustom), "default", "custom-model"))
	p.textToolCalls = true
	return p, nil
}

// NewLMStudioProvider creates an adapter for a local LM Studio server, which
// serves whichever model is loaded and needs no key.
func NewLMStudioProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = "not-needed"
	}
	p := newOpenAICompatible(string(ProviderTypeLMStudio), cfg, lmStudioBaseURL, lmStudioDefaultModel,
		staticModels(string(ProviderTypeLMStudio), "local-model", "lmstudio"))
	p.textToolCalls = true
	return p, nil
}

func newOpenAICompatible(name string, cfg Config, baseURL, defaultModel string, fallback []model.ModelInfo) *OpenAIProvider {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		defaultModel = cfg.Model
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		// Always set explicitly so OPENAI_API_KEY never leaks to other endpoints.
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	p := &OpenAIProvider{
		name:         name,
		client:       openai.NewClient(opts...),
		defaultModel: defaultModel,
		cost:         freeCost,
		maxTokens: func(_ string, policy model.MaxTokens) int {
			return policy.Resolve(model.DefaultMaxTokens)
		},
	}
	p.catalog = NewCatalog(name, p.fetchModels, fallback, DefaultCatalogTTL, cfg.Now)
	return p
}

// Name implements model.Provider.
func (p *OpenAIProvider) Name() string { return p.name }

// DefaultModel returns the model used when a call names none.
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Complete implements model.Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (*model.Response, error) {
	params := p.buildParams(messages, opts, true)

	resp, err := p.client.Chat.Completions.New(ctx, params, p.requestOptions()...)
	if err != nil {
		return nil, classifyError(p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, malformedError(p.name, "response contained no choices")
	}

	choice := resp.Choices[0]
	result := &model.Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: model.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if result.Model == "" {
		result.Model = string(params.Model)
	}

	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		id := tc.ID
		if id == "" {
			id = newToolCallID()
		}
		result.ToolCalls = append(result.ToolCalls, model.ToolCall{
			ID:        id,
			Name:      localToolName(tc.Function.Name),
			Arguments: tc.Function.Arguments,
		})
	}

	if p.textToolCalls {
		withLeakedToolCall(result, opts.Tools)
	}
	return result, nil
}

// StreamComplete implements model.Provider. Tools are not offered on the
// streaming path; it yields text only.
func (p *OpenAIProvider) StreamComplete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params := p.buildParams(messages, opts, false)

		stream := p.client.Chat.Completions.NewStreaming(ctx, params, p.requestOptions()...)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield("", classifyError(p.name, err))
		}
	}
}

// GetAvailableModels implements model.Provider using the cached catalogue.
func (p *OpenAIProvider) GetAvailableModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.catalog.Models(ctx)
}

// RefreshModels implements model.Provider.
func (p *OpenAIProvider) RefreshModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.catalog.Refresh(ctx)
}

// EstimateCost implements model.Provider.
func (p *OpenAIProvider) EstimateCost(usage model.Usage, modelName string) float64 {
	return p.cost(usage, modelName)
}

func (p *OpenAIProvider) buildParams(messages []model.Message, opts model.CompletionOptions, withTools bool) openai.ChatCompletionNewParams {
	modelName := opts.Model
	if modelName == "" {
		modelName = p.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Messages:    ConvertToOpenAIMessages(messages),
		Model:       openai.ChatModel(modelName),
		Temperature: openai.Float(temperature(opts)),
		MaxTokens:   openai.Int(int64(p.maxTokens(modelName, opts.MaxTokens))),
	}
	if withTools && len(opts.Tools) > 0 {
		params.Tools = mcp.ToOpenAITools(wireToolDefinitions(opts.Tools))
	}
	return params
}

// requestOptions returns per-request options. Every request carries a fresh
// X-Request-ID.
func (p *OpenAIProvider) requestOptions() []option.RequestOption {
	opts := []option.RequestOption{option.WithHeader("X-Request-ID", uuid.NewString())}
	for key, values := range p.headers {
		for _, v := range values {
			opts = append(opts, option.WithHeader(key, v))
		}
	}
	return opts
}

func (p *OpenAIProvider) fetchModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, classifyError(p.name, err)
	}

	result := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		result = append(result, model.ModelInfo{
			ID:       m.ID,
			Name:     m.ID,
			Provider: p.name,
		})
	}
	return result, nil
}

// temperature returns the requested temperature, or DefaultTemperature when
// the caller left it unset.
func temperature(opts model.CompletionOptions) float64 {
	return opts.TemperatureOr(DefaultTemperature)
}
