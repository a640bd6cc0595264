package testutil

import (
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/franktheglock/openllm/model"
)

// Temperature returns a pointer for CompletionOptions.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: "Hello, how are you?", Timestamp: time.Now()},
		{Role: model.RoleAssistant, Content: "I'm doing well, thank you!", Timestamp: time.Now()},
		{Role: model.RoleUser, Content: "Can you help me with a task?", Timestamp: time.Now()},
	}
}

// ToolExchange returns a conversation in which the assistant called the
// calculator and received its result.
func ToolExchange() []model.Message {
	call := model.ToolCall{ID: "call_1", Name: "calculate", Arguments: map[string]any{"expression": "2+2"}}
	return []model.Message{
		SystemMessage("Be terse."),
		{Role: model.RoleUser, Content: "2+2?"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{call}},
		model.NewToolResult(call, "**2+2** = **4**"),
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{{Role: model.RoleUser, Content: content, Timestamp: time.Now()}}
}

// TestTools returns sample tool definitions for testing
func TestTools() []model.ToolDefinition {
	return []mcptypes.Tool{
		{
			Name:        "get_weather",
			Description: "Get the current weather for a location",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The city and state, e.g. San Francisco, CA",
					},
				},
				Required: []string{"location"},
			},
		},
		{
			Name:        "calculate",
			Description: "Perform a mathematical calculation",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"expression": map[string]any{
						"type":        "string",
						"description": "The mathematical expression to evaluate",
					},
				},
				Required: []string{"expression"},
			},
		},
	}
}

// SystemMessage returns a system message for testing
func SystemMessage(content string) model.Message {
	return model.Message{Role: model.RoleSystem, Content: content, Timestamp: time.Now()}
}

// TextResponse returns a final response without tool calls.
func TextResponse(content string) *model.Response {
	return &model.Response{
		Content:      content,
		FinishReason: "stop",
		Usage:        model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// ToolCallResponse returns a response requesting the given tool calls.
func ToolCallResponse(calls ...model.ToolCall) *model.Response {
	return &model.Response{
		ToolCalls:    calls,
		FinishReason: "tool_calls",
		Usage:        model.Usage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28},
	}
}
