// Package ollama wraps the Ollama API client with the defaults and model
// capability knowledge the bot needs.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama2"
)

type Client struct {
	client  *api.Client
	baseURL string
}

// ChunkFunc receives each streamed chat response.
type ChunkFunc func(resp api.ChatResponse) error

// NewClient creates a client for the Ollama server at baseURL. A nil
// httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q: scheme and host required", baseURL)
	}

	return &Client{
		client:  api.NewClient(parsedURL, httpClient),
		baseURL: baseURL,
	}, nil
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Chat sends a non-streaming chat request and returns the single response.
func (c *Client) Chat(ctx context.Context, req *api.ChatRequest) (api.ChatResponse, error) {
	stream := false
	req.Stream = &stream

	var final api.ChatResponse
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	return final, err
}

// ChatStream sends a streaming chat request, calling fn for every chunk.
// Returning an error from fn aborts the stream.
func (c *Client) ChatStream(ctx context.Context, req *api.ChatRequest, fn ChunkFunc) error {
	stream := true
	req.Stream = &stream
	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		return fn(resp)
	})
}

// List returns the models installed on the server.
func (c *Client) List(ctx context.Context) ([]api.ListModelResponse, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// toolCallingModels tracks which model families support tool calling.
// This is a curated list based on Ollama documentation and community testing.
var toolCallingModels = map[string]bool{
	"qwen":      true, // qwen2.5-coder, qwen3-coder
	"llama3.1":  true,
	"llama3.2":  true, // 3b and above
	"mistral":   true, // mistral:latest, mistral-nemo
	"mixtral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,
	"llama3.3":  true,

	"llama3-gradient": false,
	"llama3":          false, // original llama3 (not 3.1/3.2/3.3)
	"llama2":          false,
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// orderedPrefixes lists the most specific prefixes first, so "llama3.2" is
// checked before the generic "llama3".
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "mixtral", "nemotron", "granite3",
	"codellama",
	"llama3", "llama2",
	"deepseek", "phi", "gemma",
}

// ModelSupportsToolCalling reports whether a model is known to support
// Ollama's tool calling API. Unknown models are assumed not to.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			return toolCallingModels[prefix]
		}
	}
	return false
}
