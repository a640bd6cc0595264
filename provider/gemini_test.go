package provider

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/provider/testutil"
)

func TestConvertToGeminiContents(t *testing.T) {
	contents, system := convertToGeminiContents(append(testutil.ToolExchange(),
		model.Message{Role: model.RoleSystem, Content: "Use metric units."},
		model.Message{Role: model.RoleUser, Content: "and 3+3?"},
	))

	assert.Equal(t, "Be terse.\n\nUse metric units.", system)
	require.Len(t, contents, 4)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, []genai.Part{genai.Text("2+2?")}, contents[0].Parts)

	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 1)
	assert.Equal(t, genai.FunctionCall{Name: "calculate", Args: map[string]any{"expression": "2+2"}}, contents[1].Parts[0])

	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, []genai.Part{
		genai.FunctionResponse{Name: "calculate", Response: map[string]any{"result": "**2+2** = **4**"}},
	}, contents[2].Parts)

	assert.Equal(t, "user", contents[3].Role)
	assert.Equal(t, []genai.Part{genai.Text("and 3+3?")}, contents[3].Parts)
}

func TestConvertToGeminiContentsToolResults(t *testing.T) {
	search := model.ToolCall{ID: "call_a", Name: "search.web", Arguments: `{"q":"go"}`}
	clock := model.ToolCall{ID: "call_b", Name: "clock", Arguments: `{}`}

	tests := []struct {
		name     string
		messages []model.Message
		want     []*genai.Content
	}{
		{
			name: "parallel calls answered in one turn",
			messages: []model.Message{
				{Role: model.RoleUser, Content: "go news and the time"},
				{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{search, clock}},
				model.NewToolResult(search, `{"hits":2}`),
				model.NewToolResult(clock, "12:00"),
			},
			want: []*genai.Content{
				{Role: "user", Parts: []genai.Part{genai.Text("go news and the time")}},
				{Role: "model", Parts: []genai.Part{
					genai.FunctionCall{Name: "search__web", Args: map[string]any{"q": "go"}},
					genai.FunctionCall{Name: "clock", Args: map[string]any{}},
				}},
				{Role: "user", Parts: []genai.Part{
					genai.FunctionResponse{Name: "search__web", Response: map[string]any{"hits": float64(2)}},
					genai.FunctionResponse{Name: "clock", Response: map[string]any{"result": "12:00"}},
				}},
			},
		},
		{
			name: "result without a call stays text",
			messages: []model.Message{
				{Role: model.RoleUser, Content: "hi"},
				{Role: model.RoleTool, Name: "clock", ToolCallID: "call_gone", Content: "12:00"},
			},
			want: []*genai.Content{
				{Role: "user", Parts: []genai.Part{genai.Text("hi"), genai.Text("[clock] 12:00")}},
			},
		},
		{
			name: "result matched by name when the id is missing",
			messages: []model.Message{
				{Role: model.RoleUser, Content: "time?"},
				{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{clock}},
				{Role: model.RoleTool, Name: "clock", Content: "12:00"},
			},
			want: []*genai.Content{
				{Role: "user", Parts: []genai.Part{genai.Text("time?")}},
				{Role: "model", Parts: []genai.Part{genai.FunctionCall{Name: "clock", Args: map[string]any{}}}},
				{Role: "user", Parts: []genai.Part{genai.FunctionResponse{Name: "clock", Response: map[string]any{"result": "12:00"}}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, _ := convertToGeminiContents(tt.messages)
			assert.Equal(t, tt.want, contents)
		})
	}
}

func TestConvertToGeminiContentsSkipsEmpty(t *testing.T) {
	contents, system := convertToGeminiContents([]model.Message{
		{Role: model.RoleUser, Content: ""},
		{Role: model.RoleAssistant, Content: ""},
		{Role: model.RoleUser, Content: "hi"},
	})
	assert.Empty(t, system)
	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].Role)
}

func TestGeminiFinishReason(t *testing.T) {
	tests := []struct {
		in   genai.FinishReason
		want string
	}{
		{genai.FinishReasonStop, "stop"},
		{genai.FinishReasonMaxTokens, "length"},
		{genai.FinishReasonSafety, "content_filter"},
		{genai.FinishReasonRecitation, "content_filter"},
		{genai.FinishReasonOther, "other"},
		{genai.FinishReasonUnspecified, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, geminiFinishReason(tt.in))
		})
	}
}

func TestGeminiRejectsTrailingModelTurn(t *testing.T) {
	p, err := NewGeminiProvider(Config{APIKey: "g-key"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	_, err = p.Complete(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
	}, model.CompletionOptions{})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = p.Complete(context.Background(), nil, model.CompletionOptions{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGeminiProviderConfig(t *testing.T) {
	_, err := NewGeminiProvider(Config{})
	assert.ErrorIs(t, err, ErrConfiguration)

	p, err := NewGeminiProvider(Config{APIKey: "g-key"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	usage := model.Usage{PromptTokens: 1_000_000}
	assert.InDelta(t, 0.35, p.EstimateCost(usage, "gemini-1.5-flash"), 1e-9)
	assert.True(t, supportsGenerateContent(nil))
	assert.False(t, supportsGenerateContent([]string{"embedContent"}))
}
