package config

import "github.com/franktheglock/openllm/model"

const DefaultSystemPrompt = "You are a helpful assistant in a chat server. Answer clearly and use the available tools when they help."

// CharLimitInstruction is appended to the system prompt of channels that
// enforce the platform message limit.
const CharLimitInstruction = "\n\nIMPORTANT: Keep your responses under 2000 characters to ensure they fit in a single Discord message. Be concise and direct."

func Default() *Config {
	return &Config{
		DataDirectory: "~/.local/share/openllm",
		Server:        ServerConfig{Listen: "127.0.0.1:8080"},
		LLM: LLMConfig{
			DefaultProvider:        "openai",
			DefaultModel:           "gpt-4-turbo-preview",
			Temperature:            0.7,
			MaxTokens:              model.FixedMaxTokens(model.DefaultMaxTokens),
			MaxContextTokens:       32000,
			ReserveTokens:          2048,
			MinMessages:            2,
			MaxToolDepth:           5,
			ProviderTimeoutSeconds: 120,
			ToolTimeoutSeconds:     30,
		},
		Prompts: PromptsConfig{System: DefaultSystemPrompt},
		Bot:     BotConfig{MaxMessageLength: 2000},
		Tools: ToolsConfig{
			WebSearch: WebSearchConfig{Provider: "duckduckgo", RequestsPerSecond: 1},
		},
	}
}

func GenerateConfigTemplate() string {
	return `# openllm configuration
# Location: ~/.config/openllm/config.toml (override with OPENLLM_CONFIG)
# This file uses TOML format: https://toml.io
# API keys are read from the environment or a .env file, never from here.

# Directory for the audit database and debug log
data_directory = "~/.local/share/openllm"

[server]
listen = "127.0.0.1:8080"

[llm]
# openai, anthropic, gemini, ollama, openrouter, custom, lmstudio
default_provider = "openai"
default_model = "gpt-4-turbo-preview"
temperature = 0.7
# An integer, or "auto" to use the model's context window (OpenRouter)
max_tokens = 2048
max_context_tokens = 32000
reserve_tokens = 2048
min_messages = 2
max_tool_depth = 5
provider_timeout_seconds = 120
tool_timeout_seconds = 30

[prompts]
system = "You are a helpful assistant in a chat server. Answer clearly and use the available tools when they help."

[bot]
max_message_length = 2000

[tools]
# Empty means every registered tool
enabled = []

[tools.web_search]
# duckduckgo, searxng, brave, google
provider = "duckduckgo"
requests_per_second = 1.0

# [[providers]]
# id = "ollama"
# base_url = "http://localhost:11434"
# enabled = true

# [channels."123456789"]
# provider = "anthropic"
# model = "claude-3-haiku-20240307"
# enabled_tools = ["calculate", "web_search"]
# enforce_char_limit = true

# [[mcp_servers]]
# id = "fs"
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
# enabled = true
`
}
