package provider

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/franktheglock/openllm/mcp"
	"github.com/franktheglock/openllm/model"
)

const anthropicBaseURL = "https://api.anthropic.com"

// AnthropicProvider implements model.Provider using Anthropic's official Go SDK.
//
// System messages move to the top-level system parameter. Tool requests and
// tool results use native tool_use / tool_result content blocks.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel anthropic.Model
	catalog      *Catalog
}

// NewAnthropicProvider creates the Anthropic adapter.
//
// Parameters:
//   - cfg.BaseURL: Anthropic API base URL (default: "https://api.anthropic.com")
//   - cfg.APIKey: Anthropic API key (required)
//   - cfg.Model: default model (default: Claude Sonnet 4.5)
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, configError(string(ProviderTypeAnthropic), "Anthropic API key is required (set ANTHROPIC_API_KEY)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	defaultModel := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		defaultModel = anthropic.Model(cfg.Model)
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	// Anthropic's catalogue is fixed, so the fetch never fails.
	models := staticModels(string(ProviderTypeAnthropic),
		string(anthropic.ModelClaudeSonnet4_5_20250929),
		string(anthropic.ModelClaude3_5Haiku20241022),
		string(anthropic.ModelClaude_3_Opus_20240229),
		"claude-3-sonnet-20240229",
		string(anthropic.ModelClaude_3_Haiku_20240307),
	)
	fetch := func(context.Context) ([]model.ModelInfo, error) { return cloneModels(models), nil }

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
		catalog:      NewCatalog(string(ProviderTypeAnthropic), fetch, models, DefaultCatalogTTL, cfg.Now),
	}, nil
}

// Name implements model.Provider.
func (p *AnthropicProvider) Name() string { return string(ProviderTypeAnthropic) }

// Complete implements model.Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (*model.Response, error) {
	params := p.buildParams(messages, opts, true)

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(p.Name(), err)
	}
	if msg == nil {
		return nil, malformedError(p.Name(), "empty message")
	}

	var content strings.Builder
	var toolCalls []model.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			toolCalls = append(toolCalls, model.ToolCall{
				ID:        block.ID,
				Name:      localToolName(block.Name),
				Arguments: json.RawMessage(block.Input),
			})
		}
	}

	result := &model.Response{
		Content:      content.String(),
		Model:        string(msg.Model),
		ToolCalls:    toolCalls,
		FinishReason: string(msg.StopReason),
		Usage: model.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	if result.Model == "" {
		result.Model = string(params.Model)
	}
	return result, nil
}

// StreamComplete implements model.Provider, yielding text deltas.
func (p *AnthropicProvider) StreamComplete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params := p.buildParams(messages, opts, false)

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
				if !yield(text.Text, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield("", classifyError(p.Name(), err))
		}
	}
}

// GetAvailableModels implements model.Provider.
func (p *AnthropicProvider) GetAvailableModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.catalog.Models(ctx)
}

// RefreshModels implements model.Provider.
func (p *AnthropicProvider) RefreshModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.catalog.Refresh(ctx)
}

// EstimateCost implements model.Provider.
func (p *AnthropicProvider) EstimateCost(usage model.Usage, modelName string) float64 {
	return anthropicPricing.Cost(usage, modelName)
}

func (p *AnthropicProvider) buildParams(messages []model.Message, opts model.CompletionOptions, withTools bool) anthropic.MessageNewParams {
	modelName := p.defaultModel
	if opts.Model != "" {
		modelName = anthropic.Model(opts.Model)
	}

	converted, system := convertToAnthropicMessages(messages)
	params := anthropic.MessageNewParams{
		Model:       modelName,
		Messages:    converted,
		MaxTokens:   int64(opts.MaxTokens.Resolve(model.DefaultMaxTokens)),
		Temperature: anthropic.Float(temperature(opts)),
	}
	if len(system) > 0 {
		params.System = system
	}
	if withTools && len(opts.Tools) > 0 {
		params.Tools = mcp.ToAnthropicTools(wireToolDefinitions(opts.Tools))
	}
	return params
}

// convertToAnthropicMessages converts the conversation to Anthropic's format.
//
// Anthropic has no system role and requires alternating user/assistant turns:
//   - system messages become system prompt blocks
//   - tool results become tool_result blocks on a user turn
//   - consecutive turns of the same role are merged into one
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	result := make([]anthropic.MessageParam, 0, len(messages))
	knownCalls := map[string]bool{}

	appendBlocks := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, blocks...)
			return
		}
		result = append(result, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if msg.Content != "" {
				systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})
			}

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				knownCalls[tc.ID] = true
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, argumentsObject(tc), wireToolName(tc.Name)))
			}
			appendBlocks(anthropic.MessageParamRoleAssistant, blocks...)

		case model.RoleTool:
			if msg.ToolCallID != "" && knownCalls[msg.ToolCallID] {
				appendBlocks(anthropic.MessageParamRoleUser,
					anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, strings.HasPrefix(msg.Content, "Error:")))
			} else {
				appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(toolResultAsUserText(msg)))
			}

		default:
			if msg.Content != "" {
				appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(msg.Content))
			}
		}
	}

	return result, systemBlocks
}
