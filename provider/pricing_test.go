package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/franktheglock/openllm/model"
)

func TestPriceTableLookup(t *testing.T) {
	tests := []struct {
		model string
		want  Price
	}{
		{"gpt-4", Price{Input: 30, Output: 60}},
		{"gpt-4o-mini", Price{Input: 0.15, Output: 0.6}},
		{"gpt-4o-2024-08-06", Price{Input: 2.5, Output: 10}},
		{"gpt-3.5-turbo-0125", Price{Input: 0.5, Output: 1.5}},
		{"something-else", Price{Input: 30, Output: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, openAIPricing.Lookup(tt.model))
		})
	}
}

func TestPriceTableCost(t *testing.T) {
	usage := model.Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000, TotalTokens: 1_500_000}
	assert.InDelta(t, 3+7.5, anthropicPricing.Cost(usage, "claude-sonnet-4-5-20250929"), 1e-9)
	assert.InDelta(t, 0.35+0.525, geminiPricing.Cost(usage, "gemini-1.5-flash-latest"), 1e-9)
	assert.Zero(t, openAIPricing.Cost(model.Usage{}, "gpt-4"))
	assert.Zero(t, freeCost(usage, "llama3"))
}
