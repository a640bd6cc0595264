package model

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one turn in a channel conversation.
//
// Assistant messages may carry ToolCalls with empty Content. Tool messages
// carry the result text in Content, the invoked tool in Name and the id of
// the request they answer in ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitzero"`
}

// ToolCall is a model-issued request to run a named tool.
//
// Arguments holds whatever the vendor produced: a decoded map, a raw JSON
// string, or json.RawMessage. The orchestrator normalizes it before execution.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

// ArgumentsJSON renders Arguments as a JSON document for wire formats that
// want a string payload.
func (tc ToolCall) ArgumentsJSON() string {
	switch v := tc.Arguments.(type) {
	case nil:
		return "{}"
	case string:
		if v == "" {
			return "{}"
		}
		return v
	case json.RawMessage:
		if len(v) == 0 {
			return "{}"
		}
		return string(v)
	case []byte:
		if len(v) == 0 {
			return "{}"
		}
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "{}"
		}
		return string(b)
	}
}

// NewToolResult builds the tool-role message answering call.
func NewToolResult(call ToolCall, result string) Message {
	return Message{
		Role:       RoleTool,
		Content:    result,
		Name:       call.Name,
		ToolCallID: call.ID,
		Timestamp:  time.Now(),
	}
}
