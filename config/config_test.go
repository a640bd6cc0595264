package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franktheglock/openllm/model"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENLLM_DATA_DIR", "OPENLLM_LISTEN", "OPENLLM_PROVIDER", "OPENLLM_MODEL",
		"OPENLLM_DEBUG", "SEARXNG_URL", "BRAVE_API_KEY", "GOOGLE_API_KEY", "GOOGLE_CSE_ID",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFileDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.LLM, cfg.LLM)
	assert.Equal(t, def.Server.Listen, cfg.Server.Listen)
	assert.Equal(t, DefaultSystemPrompt, cfg.Prompts.System)
	assert.Equal(t, 2000, cfg.Bot.MaxMessageLength)
	assert.Equal(t, "duckduckgo", cfg.Tools.WebSearch.Provider)
}

func TestLoadFileValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
data_directory = "/tmp/openllm-test"

[llm]
default_provider = "openrouter"
default_model = "openai/gpt-4o"
temperature = 0.2
max_tokens = "auto"
min_messages = 0
max_tool_depth = 3

[tools]
enabled = ["calculate"]

[[providers]]
id = "Ollama"
base_url = "http://gpu:11434"
enabled = true

[channels."42"]
provider = "anthropic"
max_tokens = 512
enforce_char_limit = true

[[mcp_servers]]
id = "fs"
command = "npx"
args = ["-y", "server"]
enabled = true
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/openllm-test", cfg.DataDir())
	assert.Equal(t, filepath.Join("/tmp/openllm-test", "bot.db"), cfg.DatabasePath())
	assert.Equal(t, "openrouter", cfg.LLM.DefaultProvider)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, model.AutoMaxTokens, cfg.LLM.MaxTokens)
	assert.Equal(t, 0, cfg.LLM.MinMessages, "explicit zero is kept")
	assert.Equal(t, 3, cfg.LLM.MaxToolDepth)
	assert.Equal(t, 32000, cfg.LLM.MaxContextTokens)
	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, []string{"-y", "server"}, cfg.MCPServers[0].Args)

	ch := cfg.Channel("42")
	assert.Equal(t, "anthropic", ch.Provider)
	assert.Empty(t, ch.Model, "global model does not carry over to another provider")
	assert.Equal(t, model.FixedMaxTokens(512), ch.MaxTokens)
	assert.True(t, ch.EnforceCharLimit)
	assert.Equal(t, []string{"calculate"}, ch.EnabledTools)
	assert.Equal(t, DefaultSystemPrompt+CharLimitInstruction, ch.EffectiveSystemPrompt())

	other := cfg.Channel("7")
	assert.Equal(t, "openrouter", other.Provider)
	assert.Equal(t, "openai/gpt-4o", other.Model)
	assert.Equal(t, model.AutoMaxTokens, other.MaxTokens)
	assert.False(t, other.EnforceCharLimit)

	providers := cfg.EnabledProviders()
	require.Len(t, providers, 2)
	assert.Equal(t, "ollama", providers[0].ID)
	assert.Equal(t, "http://gpu:11434", providers[0].BaseURL)
	assert.Equal(t, "openrouter", providers[1].ID)
}

func TestLoadFileZeroTemperature(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(writeConfig(t, `
[llm]
temperature = 0.0

[channels.7]
temperature = 0.0
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.LLM.Temperature)
	assert.Equal(t, 0.0, cfg.Channel("7").Temperature)
	assert.Equal(t, 0.0, cfg.Channel("8").Temperature)
}

func TestLoadFileInvalid(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(writeConfig(t, "[llm\nbroken"))
	require.Error(t, err)

	_, err = LoadFile(writeConfig(t, "[llm]\nmax_tokens = \"lots\""))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENLLM_PROVIDER", "ollama")
	t.Setenv("OPENLLM_MODEL", "llama2")
	t.Setenv("OPENLLM_LISTEN", ":9000")
	t.Setenv("BRAVE_API_KEY", "brave-key")
	t.Setenv("SEARXNG_URL", "http://searx.local")

	cfg, err := LoadFile(writeConfig(t, "[llm]\ndefault_provider = \"openai\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.DefaultProvider)
	assert.Equal(t, "llama2", cfg.LLM.DefaultModel)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "brave-key", cfg.Tools.WebSearch.BraveAPIKey)
	assert.Equal(t, "http://searx.local", cfg.Tools.WebSearch.BaseURL)
}

func TestDisabledDefaultProviderStaysDisabled(t *testing.T) {
	cfg := Default()
	cfg.Providers = []ProviderConfig{{ID: "openai", Enabled: false}}
	assert.Empty(t, cfg.EnabledProviders())
}

func TestTemplateRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, CreateDefaultConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().LLM, cfg.LLM)

	// Never overwrite an existing file.
	require.Error(t, CreateDefaultConfig(path))
}

func TestLoadCreatesConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("OPENLLM_CONFIG", filepath.Join(dir, "config.toml"))
	t.Setenv("OPENLLM_DATA_DIR", filepath.Join(dir, "data"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(dir, "config.toml")))

	info, err := os.Stat(cfg.DataDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestInitLoggingDebug(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("OPENLLM_DEBUG", "1")
	t.Cleanup(func() {
		Debug = false
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	closer := InitLogging(dir)
	require.NotNil(t, closer)
	defer closer.Close()

	assert.True(t, Debug)
	info, err := os.Stat(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("OPENLLM_TEST_DIR", "/srv/data")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", "/home/tester"},
		{"~/data", "/home/tester/data"},
		{"$OPENLLM_TEST_DIR/bot", "/srv/data/bot"},
		{"/a/../b", "/b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
