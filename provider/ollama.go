package provider

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/ollama/ollama/api"

	"github.com/franktheglock/openllm/mcp"
	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/ollama"
)

var errStopStream = errors.New("stream consumer stopped")

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// Ollama has a native tool role, so tool results are sent as tool turns named
// after the tool. Models that are not known to support tool calling still get
// the tool list, plus system-prompt instructions for writing a call as JSON;
// their text output goes through the leaked-call heuristic.
type OllamaProvider struct {
	client       *ollama.Client
	defaultModel string
	catalog      *Catalog
}

// NewOllamaProvider creates the Ollama adapter.
//
// Parameters:
//   - cfg.BaseURL: the Ollama server URL (default: "http://localhost:11434")
//   - cfg.Model: default model (default: "llama2")
//
// Returns a configuration error if the base URL is invalid.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.HTTPClient)
	if err != nil {
		return nil, configError(string(ProviderTypeOllama), "%v", err)
	}

	defaultModel := cfg.Model
	if defaultModel == "" {
		defaultModel = ollama.DefaultModel
	}

	p := &OllamaProvider{
		client:       client,
		defaultModel: defaultModel,
	}
	fallback := staticModels(string(ProviderTypeOllama),
		"llama2", "llama2:13b", "llama2:70b", "mistral", "mixtral",
		"codellama", "phi", "neural-chat", "starling-lm")
	p.catalog = NewCatalog(string(ProviderTypeOllama), p.fetchModels, fallback, DefaultCatalogTTL, cfg.Now)
	return p, nil
}

// Name implements model.Provider.
func (p *OllamaProvider) Name() string { return string(ProviderTypeOllama) }

// Complete implements model.Provider.
func (p *OllamaProvider) Complete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (*model.Response, error) {
	req := p.buildRequest(messages, opts, true)

	resp, err := p.client.Chat(ctx, req)
	if err != nil {
		return nil, classifyError(p.Name(), err)
	}

	result := &model.Response{
		Content:      resp.Message.Content,
		Model:        resp.Model,
		ToolCalls:    ConvertToProviderToolCalls(resp.Message.ToolCalls),
		FinishReason: resp.DoneReason,
		Usage: model.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}
	if result.Model == "" {
		result.Model = req.Model
	}
	if result.FinishReason == "" {
		result.FinishReason = "stop"
	}
	withLeakedToolCall(result, opts.Tools)
	return result, nil
}

// StreamComplete implements model.Provider.
func (p *OllamaProvider) StreamComplete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := p.buildRequest(messages, opts, false)

		err := p.client.ChatStream(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			if !yield(resp.Message.Content, nil) {
				return errStopStream
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopStream) {
			yield("", classifyError(p.Name(), err))
		}
	}
}

// GetAvailableModels implements model.Provider.
func (p *OllamaProvider) GetAvailableModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.catalog.Models(ctx)
}

// RefreshModels implements model.Provider.
func (p *OllamaProvider) RefreshModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.catalog.Refresh(ctx)
}

// EstimateCost implements model.Provider. Local models are free.
func (p *OllamaProvider) EstimateCost(usage model.Usage, modelName string) float64 {
	return freeCost(usage, modelName)
}

func (p *OllamaProvider) buildRequest(messages []model.Message, opts model.CompletionOptions, withTools bool) *api.ChatRequest {
	modelName := opts.Model
	if modelName == "" {
		modelName = p.defaultModel
	}

	withTools = withTools && len(opts.Tools) > 0
	if withTools && !ollama.ModelSupportsToolCalling(modelName) {
		slog.Debug("model not known to support tool calling, adding text instructions",
			"component", "provider", "provider", p.Name(), "model", modelName)
		messages = withToolInstructions(messages, opts.Tools)
	}

	req := &api.ChatRequest{
		Model:    modelName,
		Messages: ConvertToOllamaMessages(messages),
		Options: map[string]any{
			"temperature": temperature(opts),
			"num_predict": opts.MaxTokens.Resolve(model.DefaultMaxTokens),
		},
	}
	if withTools {
		req.Tools = mcp.ToOllamaTools(wireToolDefinitions(opts.Tools))
	}
	return req
}

func (p *OllamaProvider) fetchModels(ctx context.Context) ([]model.ModelInfo, error) {
	models, err := p.client.List(ctx)
	if err != nil {
		return nil, classifyError(p.Name(), err)
	}

	result := make([]model.ModelInfo, len(models))
	for i, m := range models {
		result[i] = model.ModelInfo{
			ID:       m.Name,
			Name:     m.Name,
			Provider: p.Name(),
			Size:     m.Size,
		}
	}
	return result, nil
}
