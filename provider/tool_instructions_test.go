package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/provider/testutil"
)

func TestWithToolInstructions(t *testing.T) {
	tools := testutil.TestTools()

	t.Run("appends to existing system prompt", func(t *testing.T) {
		in := testutil.ToolExchange()
		out := withToolInstructions(in, tools)
		require.Len(t, out, len(in))
		assert.Contains(t, out[0].Content, "Be terse.\n\nTOOLS: get_weather, calculate")
		assert.Equal(t, "Be terse.", in[0].Content, "input is not modified")
	})

	t.Run("prepends when there is no system prompt", func(t *testing.T) {
		out := withToolInstructions(testutil.SingleUserMessage("hi"), tools)
		require.Len(t, out, 2)
		assert.Equal(t, model.RoleSystem, out[0].Role)
		assert.Contains(t, out[0].Content, `{"name": "<tool>", "arguments": {...}}`)
	})
}

func TestOllamaBuildRequestInstructions(t *testing.T) {
	p, err := NewOllamaProvider(Config{})
	require.NoError(t, err)
	opts := model.CompletionOptions{Tools: testutil.TestTools()}

	req := p.buildRequest(testutil.SingleUserMessage("hi"), opts, true)
	require.Len(t, req.Messages, 2, "llama2 gets text instructions")
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Len(t, req.Tools, 2)

	opts.Model = "qwen2.5-coder:7b"
	req = p.buildRequest(testutil.SingleUserMessage("hi"), opts, true)
	assert.Len(t, req.Messages, 1)

	req = p.buildRequest(testutil.SingleUserMessage("hi"), opts, false)
	assert.Empty(t, req.Tools)
}
