package model

import "context"

// UsageRecord is written once per completed turn.
type UsageRecord struct {
	ChannelID  string  `json:"channel_id"`
	UserID     string  `json:"user_id"`
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	TokensUsed int     `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
}

// ToolCallRecord is written once per executed tool call.
type ToolCallRecord struct {
	ChannelID    string `json:"channel_id"`
	UserID       string `json:"user_id"`
	ToolName     string `json:"tool_name"`
	Parameters   string `json:"parameters"`
	Result       string `json:"result"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// AuditLogger persists usage and tool-call records. Calls are side effects;
// failures are logged by the caller and never abort a turn.
type AuditLogger interface {
	LogUsage(ctx context.Context, rec UsageRecord) error
	LogToolCall(ctx context.Context, rec ToolCallRecord) error
}
