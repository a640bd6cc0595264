// Package config loads the bot configuration from config.toml, the
// environment and an optional .env file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franktheglock/openllm/model"
)

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type LLMConfig struct {
	DefaultProvider string          `toml:"default_provider"`
	DefaultModel    string          `toml:"default_model"`
	Temperature     float64         `toml:"temperature"`
	MaxTokens       model.MaxTokens `toml:"max_tokens"`

	MaxContextTokens       int `toml:"max_context_tokens"`
	ReserveTokens          int `toml:"reserve_tokens"`
	MinMessages            int `toml:"min_messages"`
	MaxToolDepth           int `toml:"max_tool_depth"`
	ProviderTimeoutSeconds int `toml:"provider_timeout_seconds"`
	ToolTimeoutSeconds     int `toml:"tool_timeout_seconds"`
}

// ProviderTimeout returns the per-call provider timeout.
func (c LLMConfig) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// ToolTimeout returns the per-call tool timeout.
func (c LLMConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

type PromptsConfig struct {
	System string `toml:"system"`
}

type BotConfig struct {
	MaxMessageLength int `toml:"max_message_length"`
}

type WebSearchConfig struct {
	Provider          string  `toml:"provider"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// Credentials come from the environment only.
	BraveAPIKey  string `toml:"-"`
	GoogleAPIKey string `toml:"-"`
	GoogleCSEID  string `toml:"-"`
}

type ToolsConfig struct {
	Enabled   []string        `toml:"enabled"`
	WebSearch WebSearchConfig `toml:"web_search"`
}

// MCPServerConfig describes an MCP server whose tools are registered at startup.
type MCPServerConfig struct {
	ID        string            `toml:"id"`
	Transport string            `toml:"transport"` // stdio (default), sse, http
	Command   string            `toml:"command"`
	Args      []string          `toml:"args"`
	Env       map[string]string `toml:"env"`
	URL       string            `toml:"url"`
	Headers   map[string]string `toml:"headers"`
	Enabled   bool              `toml:"enabled"`
}

type Config struct {
	DataDirectory string                     `toml:"data_directory"`
	Server        ServerConfig               `toml:"server"`
	LLM           LLMConfig                  `toml:"llm"`
	Prompts       PromptsConfig              `toml:"prompts"`
	Bot           BotConfig                  `toml:"bot"`
	Tools         ToolsConfig                `toml:"tools"`
	Providers     []ProviderConfig           `toml:"providers"`
	Channels      map[string]ChannelOverride `toml:"channels"`
	MCPServers    []MCPServerConfig          `toml:"mcp_servers"`
}

// Debug reports whether debug logging is active.
var Debug = false

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// DatabasePath returns the audit database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), "bot.db")
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("OPENLLM_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if listen := os.Getenv("OPENLLM_LISTEN"); listen != "" {
		c.Server.Listen = listen
	}
	if p := os.Getenv("OPENLLM_PROVIDER"); p != "" {
		c.LLM.DefaultProvider = p
	}
	if m := os.Getenv("OPENLLM_MODEL"); m != "" {
		c.LLM.DefaultModel = m
	}
	if u := os.Getenv("SEARXNG_URL"); u != "" && c.Tools.WebSearch.BaseURL == "" {
		c.Tools.WebSearch.BaseURL = u
	}
	c.Tools.WebSearch.BraveAPIKey = os.Getenv("BRAVE_API_KEY")
	c.Tools.WebSearch.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	c.Tools.WebSearch.GoogleCSEID = os.Getenv("GOOGLE_CSE_ID")
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := Default()
	if c.DataDirectory == "" {
		c.DataDirectory = def.DataDirectory
	}
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = def.LLM.DefaultProvider
	}
	if c.LLM.Temperature < 0 {
		c.LLM.Temperature = def.LLM.Temperature
	}
	if !c.LLM.MaxTokens.Auto && c.LLM.MaxTokens.Value <= 0 {
		c.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if c.LLM.MaxContextTokens <= 0 {
		c.LLM.MaxContextTokens = def.LLM.MaxContextTokens
	}
	if c.LLM.ReserveTokens <= 0 {
		c.LLM.ReserveTokens = def.LLM.ReserveTokens
	}
	if c.LLM.MinMessages < 0 {
		c.LLM.MinMessages = def.LLM.MinMessages
	}
	if c.LLM.MaxToolDepth <= 0 {
		c.LLM.MaxToolDepth = def.LLM.MaxToolDepth
	}
	if c.LLM.ProviderTimeoutSeconds <= 0 {
		c.LLM.ProviderTimeoutSeconds = def.LLM.ProviderTimeoutSeconds
	}
	if c.LLM.ToolTimeoutSeconds <= 0 {
		c.LLM.ToolTimeoutSeconds = def.LLM.ToolTimeoutSeconds
	}
	if c.Prompts.System == "" {
		c.Prompts.System = def.Prompts.System
	}
	if c.Bot.MaxMessageLength <= 0 {
		c.Bot.MaxMessageLength = def.Bot.MaxMessageLength
	}
	if c.Tools.WebSearch.Provider == "" {
		c.Tools.WebSearch.Provider = def.Tools.WebSearch.Provider
	}
	if c.Tools.WebSearch.RequestsPerSecond <= 0 {
		c.Tools.WebSearch.RequestsPerSecond = def.Tools.WebSearch.RequestsPerSecond
	}
}

// CheckDebug reports whether OPENLLM_DEBUG asks for debug logging.
func CheckDebug() bool {
	debug := strings.ToLower(os.Getenv("OPENLLM_DEBUG"))
	return debug == "true" || debug == "1"
}

// InitLogging installs the process-wide slog logger. In debug mode the level
// drops to DEBUG and output is also appended to <dataDir>/debug.log. The
// returned closer releases the log file and is never nil.
func InitLogging(dataDir string) io.Closer {
	var out io.Writer = os.Stderr
	level := slog.LevelInfo
	var closer io.Closer = io.NopCloser(nil)

	if CheckDebug() {
		Debug = true
		level = slog.LevelDebug

		logPath := filepath.Join(dataDir, "debug.log")
		// 0600: debug output may contain prompts and tool results
		f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		} else {
			out = io.MultiWriter(os.Stderr, f)
			closer = f
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	if Debug {
		slog.Debug("debug logging started", "component", "config", "data_dir", dataDir)
	}
	return closer
}

// Load reads the configuration. The file is OPENLLM_CONFIG when set,
// otherwise ~/.config/openllm/config.toml; a commented template is written
// there on first run. A .env file is loaded first and environment variables
// override file values.
func Load() (*Config, error) {
	loadDotEnv()

	path := os.Getenv("OPENLLM_CONFIG")
	if path == "" {
		path = GetConfigFilePath()
	}
	path = ExpandPath(path)

	if !FileExists(path) {
		if err := CreateDefaultConfig(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}
	return cfg, nil
}
