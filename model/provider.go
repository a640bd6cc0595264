package model

import (
	"context"
	"iter"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts one LLM vendor behind a uniform completion contract.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: the orchestrator and the tool sources depend on model only,
// while provider implementations import model.
type Provider interface {
	// Name returns the registry key the provider was created under.
	Name() string

	// Complete sends the conversation and returns one full response or an error.
	// A response is never partial.
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*Response, error)

	// StreamComplete yields text chunks as they arrive. The sequence ends after
	// the first non-nil error.
	StreamComplete(ctx context.Context, messages []Message, opts CompletionOptions) iter.Seq2[string, error]

	// GetAvailableModels returns the model catalogue, cached for remote catalogues.
	GetAvailableModels(ctx context.Context) ([]ModelInfo, error)

	// RefreshModels bypasses the catalogue cache.
	RefreshModels(ctx context.Context) ([]ModelInfo, error)

	// EstimateCost maps usage to a USD estimate. Local backends return 0.
	EstimateCost(usage Usage, model string) float64
}

// ToolDefinition is the vendor-agnostic tool descriptor: name, description
// and a JSON-schema parameter object.
type ToolDefinition = mcptypes.Tool

// CompletionOptions carries the per-call settings of one completion.
type CompletionOptions struct {
	Model string
	// Temperature is nil when the caller has no preference. Zero is a
	// valid setting.
	Temperature *float64
	MaxTokens   MaxTokens
	Tools       []ToolDefinition
}

// TemperatureOr returns the requested temperature, or def when none was set.
func (o CompletionOptions) TemperatureOr(def float64) float64 {
	if o.Temperature == nil {
		return def
	}
	return *o.Temperature
}

// Response is the uniform result of one completion call.
type Response struct {
	Content      string
	Model        string
	Usage        Usage
	ToolCalls    []ToolCall
	FinishReason string
}

// HasToolCalls reports whether the model requested any tool.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Usage holds token counts. Zero when the vendor did not report them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add sums two usage records.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// ModelInfo describes one entry of a provider's model catalogue.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextLength int    `json:"context_length,omitempty"`
	Size          int64  `json:"size,omitempty"`

	// Per-token USD prices, when the vendor publishes them.
	PromptPrice     float64 `json:"prompt_price,omitempty"`
	CompletionPrice float64 `json:"completion_price,omitempty"`
}
