package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   error
		status int
	}{
		{"unauthorized", &HTTPStatusError{StatusCode: http.StatusUnauthorized}, ErrAuthentication, 401},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, ErrAuthentication, 403},
		{"rate limited", api.StatusError{StatusCode: http.StatusTooManyRequests}, ErrRateLimited, 429},
		{"server error", &HTTPStatusError{StatusCode: http.StatusBadGateway}, ErrNetwork, 502},
		{"transport", errors.New("connection refused"), ErrNetwork, 0},
		{"wrapped", fmt.Errorf("call: %w", &HTTPStatusError{StatusCode: 429}), ErrRateLimited, 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError("test", tt.err)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)

			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "test", perr.Provider)
			assert.Equal(t, tt.status, perr.StatusCode)
		})
	}

	assert.NoError(t, classifyError("test", nil))
}

func TestClassifyErrorKeepsClassified(t *testing.T) {
	orig := configError("openai", "API key required")
	assert.Same(t, orig, classifyError("other", orig))
	assert.ErrorIs(t, orig, ErrConfiguration)
	assert.EqualError(t, orig, "openai: provider configuration error: API key required")
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Provider: "anthropic", Kind: ErrRateLimited, StatusCode: 429}
	assert.Equal(t, "anthropic: provider rate limit exceeded (HTTP 429)", err.Error())
	assert.ErrorIs(t, malformedError("gemini", "no candidates"), ErrMalformedResponse)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("post: %w", context.DeadlineExceeded)))
	assert.True(t, IsTimeout(timeoutErr{}))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(errors.New("boom")))
}
