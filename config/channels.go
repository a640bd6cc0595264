package config

import (
	"slices"
	"strings"

	"github.com/franktheglock/openllm/model"
)

// ChannelOverride is the per-channel section of config.toml. Unset fields
// inherit the global settings.
type ChannelOverride struct {
	Provider         string           `toml:"provider"`
	Model            string           `toml:"model"`
	Temperature      *float64         `toml:"temperature"`
	MaxTokens        *model.MaxTokens `toml:"max_tokens"`
	EnabledTools     []string         `toml:"enabled_tools"`
	SystemPrompt     string           `toml:"system_prompt"`
	EnforceCharLimit *bool            `toml:"enforce_char_limit"`
}

// ChannelConfig is the resolved configuration for one channel's turns.
type ChannelConfig struct {
	Provider         string
	Model            string
	Temperature      float64
	MaxTokens        model.MaxTokens
	EnabledTools     []string // empty means every registered tool
	SystemPrompt     string
	EnforceCharLimit bool
}

// Channel merges the global defaults with the override for channelID.
func (c *Config) Channel(channelID string) ChannelConfig {
	cc := ChannelConfig{
		Provider:     c.LLM.DefaultProvider,
		Model:        c.LLM.DefaultModel,
		Temperature:  c.LLM.Temperature,
		MaxTokens:    c.LLM.MaxTokens,
		EnabledTools: slices.Clone(c.Tools.Enabled),
		SystemPrompt: c.Prompts.System,
	}

	o, ok := c.Channels[channelID]
	if !ok {
		return cc
	}
	if o.Provider != "" {
		cc.Provider = o.Provider
		// A different provider rarely shares the global model name.
		if o.Model == "" && o.Provider != c.LLM.DefaultProvider {
			cc.Model = ""
		}
	}
	if o.Model != "" {
		cc.Model = o.Model
	}
	if o.Temperature != nil {
		cc.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		cc.MaxTokens = *o.MaxTokens
	}
	if o.EnabledTools != nil {
		cc.EnabledTools = slices.Clone(o.EnabledTools)
	}
	if o.SystemPrompt != "" {
		cc.SystemPrompt = o.SystemPrompt
	}
	if o.EnforceCharLimit != nil {
		cc.EnforceCharLimit = *o.EnforceCharLimit
	}
	return cc
}

// EffectiveSystemPrompt returns the system prompt for a new conversation,
// with the character-limit instruction appended when the channel enforces it.
func (cc ChannelConfig) EffectiveSystemPrompt() string {
	if cc.EnforceCharLimit {
		if cc.SystemPrompt == "" {
			return strings.TrimSpace(CharLimitInstruction)
		}
		return cc.SystemPrompt + CharLimitInstruction
	}
	return cc.SystemPrompt
}
