package testutil

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/franktheglock/openllm/model"
)

// CompleteCall records one Complete invocation.
type CompleteCall struct {
	Messages []model.Message
	Options  model.CompletionOptions
}

// MockProvider implements model.Provider for testing. Every behavior is a
// function field that tests may replace.
type MockProvider struct {
	// Configurable responses
	CompleteFunc func(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (*model.Response, error)
	StreamFunc   func(ctx context.Context, messages []model.Message, opts model.CompletionOptions) iter.Seq2[string, error]
	ModelsFunc   func(ctx context.Context) ([]model.ModelInfo, error)
	CostFunc     func(usage model.Usage, modelName string) float64

	name string

	mu    sync.Mutex
	calls []CompleteCall
}

// NewMockProvider creates a mock provider with default implementations.
func NewMockProvider(name string) *MockProvider {
	mock := &MockProvider{name: name}
	mock.CompleteFunc = mock.defaultComplete
	mock.StreamFunc = mock.defaultStream
	mock.ModelsFunc = mock.defaultModels
	mock.CostFunc = func(model.Usage, string) float64 { return 0 }
	return mock
}

// NewScriptedProvider returns a mock whose Complete returns the given
// responses in order, repeating the last one once the script runs out.
func NewScriptedProvider(name string, responses ...*model.Response) *MockProvider {
	mock := NewMockProvider(name)
	var next int
	var scriptMu sync.Mutex
	mock.CompleteFunc = func(ctx context.Context, _ []model.Message, _ model.CompletionOptions) (*model.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scriptMu.Lock()
		defer scriptMu.Unlock()
		if len(responses) == 0 {
			return &model.Response{}, nil
		}
		i := min(next, len(responses)-1)
		next++
		resp := *responses[i]
		resp.ToolCalls = slices.Clone(resp.ToolCalls)
		return &resp, nil
	}
	return mock
}

func (m *MockProvider) defaultComplete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (*model.Response, error) {
	return &model.Response{
		Content:      "Mock response",
		Model:        opts.Model,
		FinishReason: "stop",
		Usage:        model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (m *MockProvider) defaultStream(ctx context.Context, messages []model.Message, opts model.CompletionOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, chunk := range []string{"Mock ", "response"} {
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (m *MockProvider) defaultModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{ID: "mock-model-1", Name: "mock-model-1", Provider: m.name, Size: 1000},
		{ID: "mock-model-2", Name: "mock-model-2", Provider: m.name, Size: 2000},
	}, nil
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) Complete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (*model.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, CompleteCall{Messages: slices.Clone(messages), Options: opts})
	m.mu.Unlock()
	return m.CompleteFunc(ctx, messages, opts)
}

func (m *MockProvider) StreamComplete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) iter.Seq2[string, error] {
	return m.StreamFunc(ctx, messages, opts)
}

func (m *MockProvider) GetAvailableModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ModelsFunc(ctx)
}

func (m *MockProvider) RefreshModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ModelsFunc(ctx)
}

func (m *MockProvider) EstimateCost(usage model.Usage, modelName string) float64 {
	return m.CostFunc(usage, modelName)
}

// Calls returns a copy of the recorded Complete invocations.
func (m *MockProvider) Calls() []CompleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many times Complete was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ model.Provider = (*MockProvider)(nil)
