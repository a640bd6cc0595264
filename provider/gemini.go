package provider

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"slices"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/franktheglock/openllm/mcp"
	"github.com/franktheglock/openllm/model"
)

const geminiDefaultModel = "gemini-1.5-flash"

// GeminiProvider implements model.Provider for Google Gemini.
//
// System messages go to the model's system instruction. The model's function
// calls are FunctionCall parts and the results answering them are
// FunctionResponse parts in the following user turn. A result with no
// matching call is sent as user text tagged "[toolName] ".
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	catalog      *Catalog
}

// NewGeminiProvider creates the Gemini adapter. The API key is required.
func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, configError(string(ProviderTypeGemini), "Gemini API key is required (set GEMINI_API_KEY)")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, configError(string(ProviderTypeGemini), "failed to create Gemini client: %v", err)
	}

	defaultModel := cfg.Model
	if defaultModel == "" {
		defaultModel = geminiDefaultModel
	}

	p := &GeminiProvider{
		client:       client,
		defaultModel: defaultModel,
	}
	fallback := staticModels(string(ProviderTypeGemini), "gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro")
	p.catalog = NewCatalog(string(ProviderTypeGemini), p.fetchModels, fallback, DefaultCatalogTTL, cfg.Now)
	return p, nil
}

// Name implements model.Provider.
func (p *GeminiProvider) Name() string { return string(ProviderTypeGemini) }

// Close releases the underlying client.
func (p *GeminiProvider) Close() error { return p.client.Close() }

// Complete implements model.Provider.
func (p *GeminiProvider) Complete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (*model.Response, error) {
	gm, modelName := p.generativeModel(opts, true)
	cs, last, err := p.startChat(gm, messages)
	if err != nil {
		return nil, err
	}

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, classifyError(p.Name(), err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, malformedError(p.Name(), "response contained no candidates")
	}

	cand := resp.Candidates[0]
	result := &model.Response{
		Model:        modelName,
		FinishReason: geminiFinishReason(cand.FinishReason),
	}
	if cand.Content != nil {
		var content strings.Builder
		for _, part := range cand.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				content.WriteString(string(v))
			case genai.FunctionCall:
				args := v.Args
				if args == nil {
					args = map[string]any{}
				}
				result.ToolCalls = append(result.ToolCalls, model.ToolCall{
					ID:        newToolCallID(),
					Name:      localToolName(v.Name),
					Arguments: args,
				})
			}
		}
		result.Content = content.String()
	}
	if resp.UsageMetadata != nil {
		result.Usage = model.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if result.HasToolCalls() {
		result.FinishReason = "tool_calls"
	}
	return result, nil
}

// StreamComplete implements model.Provider.
func (p *GeminiProvider) StreamComplete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		gm, _ := p.generativeModel(opts, false)
		cs, last, err := p.startChat(gm, messages)
		if err != nil {
			yield("", err)
			return
		}

		it := cs.SendMessageStream(ctx, last.Parts...)
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", classifyError(p.Name(), err))
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if text, ok := part.(genai.Text); ok && text != "" {
						if !yield(string(text), nil) {
							return
						}
					}
				}
			}
		}
	}
}

// GetAvailableModels implements model.Provider.
func (p *GeminiProvider) GetAvailableModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.catalog.Models(ctx)
}

// RefreshModels implements model.Provider.
func (p *GeminiProvider) RefreshModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.catalog.Refresh(ctx)
}

// EstimateCost implements model.Provider.
func (p *GeminiProvider) EstimateCost(usage model.Usage, modelName string) float64 {
	return geminiPricing.Cost(usage, modelName)
}

func (p *GeminiProvider) generativeModel(opts model.CompletionOptions, withTools bool) (*genai.GenerativeModel, string) {
	modelName := opts.Model
	if modelName == "" {
		modelName = p.defaultModel
	}

	gm := p.client.GenerativeModel(modelName)
	gm.SetTemperature(float32(temperature(opts)))
	gm.SetMaxOutputTokens(int32(opts.MaxTokens.Resolve(model.DefaultMaxTokens)))
	if withTools && len(opts.Tools) > 0 {
		gm.Tools = mcp.ToGeminiTools(wireToolDefinitions(opts.Tools))
	}
	return gm, modelName
}

// startChat loads all but the final turn as history. The final turn must
// come from the user side.
func (p *GeminiProvider) startChat(gm *genai.GenerativeModel, messages []model.Message) (*genai.ChatSession, *genai.Content, error) {
	contents, system := convertToGeminiContents(messages)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(contents) == 0 {
		return nil, nil, malformedError(p.Name(), "conversation has no user turn to send")
	}

	last := contents[len(contents)-1]
	if last.Role != "user" {
		return nil, nil, malformedError(p.Name(), "conversation must end with a user turn")
	}

	cs := gm.StartChat()
	cs.History = contents[:len(contents)-1]
	return cs, last, nil
}

// convertToGeminiContents converts the conversation to Gemini chat contents
// and returns the joined system instruction separately. Adjacent turns of the
// same role are merged and empty text parts dropped, since Gemini rejects both.
func convertToGeminiContents(messages []model.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	// Function responses get their own turn so text never shares it.
	responseTurn := map[*genai.Content]bool{}

	appendParts := func(role string, responses bool, parts ...genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role && responseTurn[contents[n-1]] == responses {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		c := &genai.Content{Role: role, Parts: parts}
		responseTurn[c] = responses
		contents = append(contents, c)
	}

	// pending maps call ids from the latest model turn to their wire names.
	pending := map[string]string{}
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
		case model.RoleAssistant:
			clear(pending)
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				name := wireToolName(tc.Name)
				pending[tc.ID] = name
				parts = append(parts, genai.FunctionCall{Name: name, Args: argumentsObject(tc)})
			}
			appendParts("model", false, parts...)
		case model.RoleTool:
			name, ok := answeredCall(pending, msg)
			if !ok {
				appendParts("user", false, genai.Text(toolResultAsUserText(msg)))
				continue
			}
			appendParts("user", true, genai.FunctionResponse{Name: name, Response: functionResponse(msg.Content)})
		default:
			if msg.Content != "" {
				appendParts("user", false, genai.Text(msg.Content))
			}
		}
	}

	return contents, strings.Join(system, "\n\n")
}

// answeredCall finds the pending call msg answers, by id or, when the result
// carries no id, by tool name.
func answeredCall(pending map[string]string, msg model.Message) (string, bool) {
	if msg.ToolCallID != "" {
		name, ok := pending[msg.ToolCallID]
		return name, ok
	}
	want := wireToolName(msg.Name)
	for _, name := range pending {
		if name == want {
			return name, true
		}
	}
	return "", false
}

// functionResponse wraps tool output in the object a FunctionResponse needs.
// Output that is already a JSON object is passed through.
func functionResponse(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": content}
}

func geminiFinishReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return "content_filter"
	case genai.FinishReasonUnspecified:
		return ""
	default:
		return "other"
	}
}

func (p *GeminiProvider) fetchModels(ctx context.Context) ([]model.ModelInfo, error) {
	var result []model.ModelInfo
	it := p.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classifyError(p.Name(), err)
		}
		if !supportsGenerateContent(info.SupportedGenerationMethods) {
			continue
		}
		id := strings.TrimPrefix(info.Name, "models/")
		name := info.DisplayName
		if name == "" {
			name = id
		}
		result = append(result, model.ModelInfo{
			ID:            id,
			Name:          name,
			Provider:      p.Name(),
			ContextLength: int(info.InputTokenLimit),
		})
	}
	return result, nil
}

func supportsGenerateContent(methods []string) bool {
	return len(methods) == 0 || slices.Contains(methods, "generateContent")
}
