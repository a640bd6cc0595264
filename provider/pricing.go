package provider

import (
	"strings"

	"github.com/franktheglock/openllm/model"
)

// Price is USD per one million tokens.
type Price struct {
	Input  float64
	Output float64
}

// PriceTable maps model names to prices, with a representative fallback for
// unknown models.
type PriceTable struct {
	Prices   map[string]Price
	Fallback string
}

// Lookup finds the price for modelName: exact match, then the longest known
// prefix, then the fallback entry.
func (t PriceTable) Lookup(modelName string) Price {
	if p, ok := t.Prices[modelName]; ok {
		return p
	}
	best := ""
	for name := range t.Prices {
		if strings.HasPrefix(modelName, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return t.Prices[best]
	}
	return t.Prices[t.Fallback]
}

// Cost computes the USD estimate for usage on modelName.
func (t PriceTable) Cost(usage model.Usage, modelName string) float64 {
	p := t.Lookup(modelName)
	return float64(usage.PromptTokens)/1_000_000*p.Input +
		float64(usage.CompletionTokens)/1_000_000*p.Output
}

var openAIPricing = PriceTable{
	Prices: map[string]Price{
		"gpt-4-turbo-preview": {Input: 10, Output: 30},
		"gpt-4":               {Input: 30, Output: 60},
		"gpt-4-32k":           {Input: 60, Output: 120},
		"gpt-3.5-turbo":       {Input: 0.5, Output: 1.5},
		"gpt-3.5-turbo-16k":   {Input: 1, Output: 2},
		"gpt-4o":              {Input: 2.5, Output: 10},
		"gpt-4o-mini":         {Input: 0.15, Output: 0.6},
	},
	Fallback: "gpt-4",
}

var anthropicPricing = PriceTable{
	Prices: map[string]Price{
		"claude-3-opus-20240229":     {Input: 15, Output: 75},
		"claude-3-sonnet-20240229":   {Input: 3, Output: 15},
		"claude-3-haiku-20240307":    {Input: 0.25, Output: 1.25},
		"claude-3-5-haiku-20241022":  {Input: 0.8, Output: 4},
		"claude-sonnet-4-5-20250929": {Input: 3, Output: 15},
	},
	Fallback: "claude-3-opus-20240229",
}

var geminiPricing = PriceTable{
	Prices: map[string]Price{
		"gemini-pro":        {Input: 0.5, Output: 1.5},
		"gemini-pro-vision": {Input: 0.5, Output: 1.5},
		"gemini-1.5-pro":    {Input: 3.5, Output: 10.5},
		"gemini-1.5-flash":  {Input: 0.35, Output: 1.05},
	},
	Fallback: "gemini-1.5-flash",
}

// openRouterFlatRate is USD per 1K total tokens when per-model pricing is unknown.
const openRouterFlatRate = 0.002

func freeCost(model.Usage, string) float64 { return 0 }
