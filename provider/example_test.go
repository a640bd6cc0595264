package provider_test

import (
	"context"
	"fmt"
	"log"

	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/provider"
)

// ExampleNewProvider demonstrates creating an Ollama provider using the factory.
func ExampleNewProvider() {
	cfg := provider.Config{
		Type:    provider.ProviderTypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	}

	p, err := provider.NewProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Provider created: %T (%s)\n", p, p.Name())
	// Output: Provider created: *provider.OllamaProvider (ollama)
}

// ExampleOllamaProvider_Complete demonstrates a single completion with tools.
//
// Note: This example doesn't actually run because it requires a live Ollama server.
func ExampleOllamaProvider_Complete() {
	p, err := provider.NewOllamaProvider(provider.Config{Model: "llama3.1"})
	if err != nil {
		log.Fatal(err)
	}

	messages := []model.Message{
		{Role: model.RoleUser, Content: "What's the weather in San Francisco?"},
	}

	resp, err := p.Complete(context.Background(), messages, model.CompletionOptions{
		Tools: nil, // normally tools.Registry.Definitions()
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, call := range resp.ToolCalls {
		fmt.Printf("Tool called: %s %s\n", call.Name, call.ArgumentsJSON())
	}
	fmt.Println(resp.Content)
}

// ExampleOllamaProvider_StreamComplete demonstrates streaming text output.
//
// Note: This example doesn't actually run because it requires a live Ollama server.
func ExampleOllamaProvider_StreamComplete() {
	p, err := provider.NewOllamaProvider(provider.Config{})
	if err != nil {
		log.Fatal(err)
	}

	messages := []model.Message{{Role: model.RoleUser, Content: "Hello! How are you?"}}
	for chunk, err := range p.StreamComplete(context.Background(), messages, model.CompletionOptions{}) {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(chunk)
	}
}

// ExampleConfig demonstrates different provider configurations.
func ExampleConfig() {
	ollamaCfg := provider.Config{
		Type:    provider.ProviderTypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
		// APIKey is not used for Ollama
	}

	openRouterCfg := provider.Config{
		Type:   provider.ProviderTypeOpenRouter,
		Model:  "anthropic/claude-3-haiku-20240307",
		APIKey: "sk-or-...",
	}

	anthropicCfg := provider.Config{
		Type:   provider.ProviderTypeAnthropic,
		Model:  "claude-3-opus-20240229",
		APIKey: "sk-ant-...",
	}

	fmt.Printf("Ollama: %s\n", ollamaCfg.Type)
	fmt.Printf("OpenRouter: %s\n", openRouterCfg.Type)
	fmt.Printf("Anthropic: %s\n", anthropicCfg.Type)

	// Output:
	// Ollama: ollama
	// OpenRouter: openrouter
	// Anthropic: anthropic
}
