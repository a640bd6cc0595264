package provider

import (
	"encoding/json"
	"strings"

	"github.com/franktheglock/openllm/model"
)

// ExtractLeakedToolCall looks for a tool call that a model wrote into its text
// output instead of using the structured tool-calling channel.
//
// The first balanced {...} span is parsed as JSON. It is accepted only when it
// names one of tools, either as {"name": ..., "arguments": ...} or in the
// OpenAI shape {"function": {"name": ..., "arguments": ...}}. With no tools
// nothing is accepted. On success the returned content has the span removed
// and trimmed.
func ExtractLeakedToolCall(content string, tools []model.ToolDefinition) (model.ToolCall, string, bool) {
	start, end, ok := firstBalancedObject(content)
	if !ok {
		return model.ToolCall{}, content, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(content[start:end]), &obj); err != nil {
		return model.ToolCall{}, content, false
	}

	call, ok := leakedCallFromObject(obj)
	if !ok || !offered(tools, call.Name) {
		return model.ToolCall{}, content, false
	}
	call.ID = newToolCallID()

	remaining := strings.TrimSpace(content[:start] + content[end:])
	return call, remaining, true
}

func leakedCallFromObject(obj map[string]any) (model.ToolCall, bool) {
	if fn, ok := obj["function"].(map[string]any); ok {
		obj = fn
	} else if name, ok := obj["function"].(string); ok {
		obj = map[string]any{"name": name, "arguments": obj["arguments"]}
	}

	name, _ := obj["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ToolCall{}, false
	}

	args := obj["arguments"]
	if args == nil {
		args = obj["parameters"]
	}
	if args == nil {
		args = map[string]any{}
	}
	return model.ToolCall{Name: localToolName(name), Arguments: args}, true
}

func offered(tools []model.ToolDefinition, name string) bool {
	for _, tool := range tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}

// firstBalancedObject returns the byte range of the first {...} span whose
// braces balance, ignoring braces inside JSON strings.
func firstBalancedObject(s string) (int, int, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return start, i + 1, true
				}
			}
		}
		// Unbalanced from here; try the next opening brace.
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return 0, 0, false
}

// withLeakedToolCall applies the heuristic to a response that carries no
// structured tool calls, accepting only the tools offered in the request.
func withLeakedToolCall(resp *model.Response, tools []model.ToolDefinition) {
	if resp == nil || len(tools) == 0 || resp.HasToolCalls() || !strings.Contains(resp.Content, "{") {
		return
	}
	call, remaining, ok := ExtractLeakedToolCall(resp.Content, tools)
	if !ok {
		return
	}
	resp.ToolCalls = []model.ToolCall{call}
	resp.Content = remaining
	if resp.FinishReason == "" || resp.FinishReason == "stop" {
		resp.FinishReason = "tool_calls"
	}
}
