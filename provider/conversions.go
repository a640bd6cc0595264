package provider

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"github.com/franktheglock/openllm/model"
)

// wireToolName converts namespaced tool names to the form vendor APIs accept.
// Tool names must match ^[a-zA-Z0-9_-]{1,64}$ (no dots allowed).
// Example: "search.web_fetch" → "search__web_fetch"
func wireToolName(name string) string {
	return strings.ReplaceAll(name, ".", "__")
}

// localToolName reverses wireToolName.
func localToolName(name string) string {
	return strings.ReplaceAll(name, "__", ".")
}

func wireToolDefinitions(tools []model.ToolDefinition) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	converted := make([]model.ToolDefinition, len(tools))
	for i, tool := range tools {
		converted[i] = tool
		converted[i].Name = wireToolName(tool.Name)
	}
	return converted
}

func newToolCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// toolResultAsUserText renders a tool result for vendors without a native
// tool-result turn. The bracketed tag keeps it distinguishable from user text.
func toolResultAsUserText(msg model.Message) string {
	name := msg.Name
	if name == "" {
		name = "tool"
	}
	return "[" + name + "] " + msg.Content
}

// ConvertToOpenAIMessages converts the conversation to OpenAI chat messages.
//
// Assistant tool requests and tool results use the native tool-calling shape.
// A tool result whose call id never appeared in an earlier assistant message
// is sent as a tagged user message instead, since the API rejects orphans.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	knownCalls := map[string]bool{}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				knownCalls[tc.ID] = true
				calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      wireToolName(tc.Name),
							Arguments: tc.ArgumentsJSON(),
						},
					},
				})
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case model.RoleTool:
			if msg.ToolCallID != "" && knownCalls[msg.ToolCallID] {
				result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
			} else {
				result = append(result, openai.UserMessage(toolResultAsUserText(msg)))
			}
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}

// ConvertToOllamaMessages converts the conversation to Ollama chat messages.
// Ollama has a native tool role; results are correlated by tool name.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		out := api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
		switch msg.Role {
		case model.RoleAssistant:
			out.ToolCalls = ConvertFromProviderToolCalls(msg.ToolCalls)
		case model.RoleTool:
			out.ToolName = msg.Name
		case model.RoleSystem, model.RoleUser:
		default:
			out.Role = model.RoleUser
		}
		result = append(result, out)
	}
	return result
}

// ConvertToProviderToolCalls converts Ollama tool calls to the uniform shape.
// Ollama does not assign call ids, so fresh ones are generated.
//
// Returns nil if the input is nil or empty, maintaining the same nil semantics as
// the Ollama API.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			ID:        newToolCallID(),
			Name:      localToolName(call.Function.Name),
			Arguments: map[string]any(call.Function.Arguments),
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts uniform tool calls to Ollama tool calls.
// Arguments that are not already objects are decoded from JSON; undecodable
// payloads become empty argument sets.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Index:     i,
				Name:      wireToolName(call.Name),
				Arguments: api.ToolCallFunctionArguments(argumentsObject(call)),
			},
		}
	}
	return result
}

// argumentsObject decodes a tool call's arguments into a map for wire formats
// that need an object. Anything that is not a JSON object becomes an empty map.
func argumentsObject(call model.ToolCall) map[string]any {
	if m, ok := call.Arguments.(map[string]any); ok && m != nil {
		return m
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(call.ArgumentsJSON()), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
