package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/provider/testutil"
)

func TestProbeAll(t *testing.T) {
	healthy := testutil.NewMockProvider("ollama")
	broken := testutil.NewMockProvider("openai")
	broken.ModelsFunc = func(context.Context) ([]model.ModelInfo, error) {
		return nil, &Error{Provider: "openai", Kind: ErrAuthentication, StatusCode: 401}
	}

	results := ProbeAll(context.Background(), map[string]model.Provider{
		"openai": broken,
		"ollama": healthy,
	})
	require.Len(t, results, 2)

	assert.Equal(t, ProbeResult{Provider: "ollama", Valid: true, Models: 2}, results[0])
	assert.Equal(t, "openai", results[1].Provider)
	assert.False(t, results[1].Valid)
	assert.Contains(t, results[1].Error, "authentication failed")
}

func TestProbeHonorsContext(t *testing.T) {
	slow := testutil.NewMockProvider("slow")
	slow.ModelsFunc = func(ctx context.Context) ([]model.ModelInfo, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := Probe(ctx, slow)
	assert.False(t, r.Valid)
	assert.True(t, errors.Is(ctx.Err(), context.Canceled))
	assert.NotEmpty(t, r.Error)
}
