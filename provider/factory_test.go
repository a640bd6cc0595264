package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/provider/testutil"
)

func TestNewProvider(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY", "CUSTOM_API_KEY", "CUSTOM_BASE_URL", "LMSTUDIO_BASE_URL", "OLLAMA_BASE_URL"} {
		t.Setenv(key, "")
	}

	tests := []struct {
		name     string
		cfg      Config
		wantType any
		wantErr  error
	}{
		{name: "ollama", cfg: Config{Type: ProviderTypeOllama}, wantType: &OllamaProvider{}},
		{name: "openai", cfg: Config{Type: ProviderTypeOpenAI, APIKey: "k"}, wantType: &OpenAIProvider{}},
		{name: "anthropic", cfg: Config{Type: ProviderTypeAnthropic, APIKey: "k"}, wantType: &AnthropicProvider{}},
		{name: "openrouter", cfg: Config{Type: ProviderTypeOpenRouter, APIKey: "k"}, wantType: &OpenRouterProvider{}},
		{name: "custom", cfg: Config{Type: ProviderTypeCustom}, wantType: &OpenAIProvider{}},
		{name: "lmstudio", cfg: Config{Type: ProviderTypeLMStudio}, wantType: &OpenAIProvider{}},
		{name: "case insensitive", cfg: Config{Type: " Ollama "}, wantType: &OllamaProvider{}},
		{name: "unknown", cfg: Config{Type: "mystery"}, wantErr: ErrConfiguration},
		{name: "openai without key", cfg: Config{Type: ProviderTypeOpenAI}, wantErr: ErrConfiguration},
		{name: "anthropic without key", cfg: Config{Type: ProviderTypeAnthropic}, wantErr: ErrConfiguration},
		{name: "gemini without key", cfg: Config{Type: ProviderTypeGemini}, wantErr: ErrConfiguration},
		{name: "google alias without key", cfg: Config{Type: "google"}, wantErr: ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)
		})
	}
}

func TestNewProviderReadsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	p, err := NewProvider(Config{Type: ProviderTypeOpenAI})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	t.Setenv("GEMINI_API_KEY", "g-from-env")
	p, err = NewProvider(Config{Type: "google"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
	require.NoError(t, p.(*GeminiProvider).Close())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"anthropic", "custom", "gemini", "lmstudio", "ollama", "openai", "openrouter"}, r.Available())

	mock := testutil.NewMockProvider("echo")
	r.Register("Echo", func(Config) (model.Provider, error) { return mock, nil })
	assert.Contains(t, r.Available(), "echo")

	p, err := r.New(Config{Type: "ECHO"})
	require.NoError(t, err)
	assert.Same(t, mock, p)

	boom := errors.New("boom")
	r.Register("broken", func(Config) (model.Provider, error) { return nil, boom })
	_, err = r.New(Config{Type: "broken"})
	assert.ErrorIs(t, err, boom)
}

func TestAPIKeyEnv(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", APIKeyEnv(ProviderTypeOpenAI))
	assert.Equal(t, "OPENROUTER_API_KEY", APIKeyEnv("OpenRouter"))
	assert.Empty(t, APIKeyEnv(ProviderTypeOllama))
	assert.Empty(t, APIKeyEnv("unknown"))
}
