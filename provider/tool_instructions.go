package provider

import (
	"strings"

	"github.com/franktheglock/openllm/model"
)

// textToolInstructions tells a model without native tool calling how to ask
// for a tool in plain text. The output shape is the one ExtractLeakedToolCall
// recognizes.
func textToolInstructions(tools []model.ToolDefinition) string {
	toolNames := make([]string, 0, len(tools))
	for _, tool := range tools {
		toolNames = append(toolNames, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(toolNames, ", "),
		"",
		"When the user asks for something that requires a tool:",
		"1. Determine which tool is needed",
		"2. Check if you have all required parameters",
		`3. If yes: reply with ONLY {"name": "<tool>", "arguments": {...}}`,
		"4. If no: Ask for the missing parameter ONLY",
		"",
		"DO NOT:",
		"- List available tools",
		"- Explain what you're about to do",
		"",
		"Example:",
		"User: 'What is 12*7?'",
		`You: {"name": "calculate", "arguments": {"expression": "12*7"}}`,
	}, "\n")
}

// withToolInstructions returns messages with the text tool instructions
// appended to the first system message, or prepended as one.
func withToolInstructions(messages []model.Message, tools []model.ToolDefinition) []model.Message {
	instructions := textToolInstructions(tools)
	out := make([]model.Message, 0, len(messages)+1)
	placed := false
	for _, msg := range messages {
		if !placed && msg.Role == model.RoleSystem {
			msg.Content = strings.TrimSpace(msg.Content + "\n\n" + instructions)
			placed = true
		}
		out = append(out, msg)
	}
	if !placed {
		out = append([]model.Message{{Role: model.RoleSystem, Content: instructions}}, out...)
	}
	return out
}
