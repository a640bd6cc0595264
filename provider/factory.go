package provider

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/franktheglock/openllm/model"
)

// Constructor builds a provider from configuration.
type Constructor func(cfg Config) (model.Provider, error)

// Registry maps provider names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[ProviderType]Constructor
	aliases      map[string]ProviderType
}

// NewRegistry returns a registry with the built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{
		constructors: make(map[ProviderType]Constructor),
		aliases:      map[string]ProviderType{"google": ProviderTypeGemini},
	}
	r.Register(ProviderTypeOpenAI, func(cfg Config) (model.Provider, error) { return NewOpenAIProvider(cfg) })
	r.Register(ProviderTypeAnthropic, func(cfg Config) (model.Provider, error) { return NewAnthropicProvider(cfg) })
	r.Register(ProviderTypeGemini, func(cfg Config) (model.Provider, error) { return NewGeminiProvider(cfg) })
	r.Register(ProviderTypeOllama, func(cfg Config) (model.Provider, error) { return NewOllamaProvider(cfg) })
	r.Register(ProviderTypeOpenRouter, func(cfg Config) (model.Provider, error) { return NewOpenRouterProvider(cfg) })
	r.Register(ProviderTypeCustom, func(cfg Config) (model.Provider, error) { return NewCustomProvider(cfg) })
	r.Register(ProviderTypeLMStudio, func(cfg Config) (model.Provider, error) { return NewLMStudioProvider(cfg) })
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name ProviderType, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[ProviderType(strings.ToLower(string(name)))] = ctor
}

// Available returns the registered provider names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, string(name))
	}
	slices.Sort(names)
	return names
}

// New creates a provider by name. Missing credentials and base URLs are filled
// from the provider's environment variables. Unknown names fail with a
// configuration error.
func (r *Registry) New(cfg Config) (model.Provider, error) {
	name := MapProviderIDToType(string(cfg.Type))

	r.mu.RLock()
	if alias, ok := r.aliases[string(name)]; ok {
		name = alias
	}
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, configError(string(cfg.Type), "unknown provider type: %s", cfg.Type)
	}

	cfg.Type = name
	return ctor(withEnvDefaults(cfg))
}

var defaultRegistry = NewRegistry()

// NewProvider creates a provider from the default registry.
//
// Example:
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama2",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewProvider(cfg Config) (model.Provider, error) {
	return defaultRegistry.New(cfg)
}

// Register adds a constructor to the default registry.
func Register(name ProviderType, ctor Constructor) {
	defaultRegistry.Register(name, ctor)
}

// Available lists the names known to the default registry.
func Available() []string {
	return defaultRegistry.Available()
}

// MapProviderIDToType converts a config provider ID to a ProviderType,
// normalizing case and surrounding whitespace.
func MapProviderIDToType(id string) ProviderType {
	return ProviderType(strings.ToLower(strings.TrimSpace(id)))
}

// envVars names the environment variables each provider reads.
var envVars = map[ProviderType]struct {
	apiKey  string
	baseURL string
}{
	ProviderTypeOpenAI:     {apiKey: "OPENAI_API_KEY"},
	ProviderTypeAnthropic:  {apiKey: "ANTHROPIC_API_KEY"},
	ProviderTypeGemini:     {apiKey: "GEMINI_API_KEY"},
	ProviderTypeOpenRouter: {apiKey: "OPENROUTER_API_KEY"},
	ProviderTypeCustom:     {apiKey: "CUSTOM_API_KEY", baseURL: "CUSTOM_BASE_URL"},
	ProviderTypeLMStudio:   {baseURL: "LMSTUDIO_BASE_URL"},
	ProviderTypeOllama:     {baseURL: "OLLAMA_BASE_URL"},
}

func withEnvDefaults(cfg Config) Config {
	vars, ok := envVars[cfg.Type]
	if !ok {
		return cfg
	}
	if cfg.APIKey == "" && vars.apiKey != "" {
		cfg.APIKey = os.Getenv(vars.apiKey)
	}
	if cfg.BaseURL == "" && vars.baseURL != "" {
		cfg.BaseURL = os.Getenv(vars.baseURL)
	}
	return cfg
}

// APIKeyEnv returns the environment variable holding the API key for a
// provider, or "" when it needs none.
func APIKeyEnv(t ProviderType) string {
	return envVars[MapProviderIDToType(string(t))].apiKey
}
