package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
)

// Error kinds. Match with errors.Is.
var (
	ErrNetwork           = errors.New("provider network error")
	ErrAuthentication    = errors.New("provider authentication failed")
	ErrRateLimited       = errors.New("provider rate limit exceeded")
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrConfiguration     = errors.New("provider configuration error")
)

// Error is a classified provider failure. It unwraps to both Kind and Err.
type Error struct {
	Provider   string
	Kind       error
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Provider + ": " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func configError(provider, format string, args ...any) error {
	return &Error{Provider: provider, Kind: ErrConfiguration, Err: fmt.Errorf(format, args...)}
}

func malformedError(provider, format string, args ...any) error {
	return &Error{Provider: provider, Kind: ErrMalformedResponse, Err: fmt.Errorf(format, args...)}
}

// classifyError maps a vendor SDK or transport error onto an error kind.
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	status := statusCode(err)
	kind := ErrNetwork
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrAuthentication
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	}

	return &Error{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

func statusCode(err error) int {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	var olErr api.StatusError
	if errors.As(err, &olErr) {
		return olErr.StatusCode
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// HTTPStatusError is returned by plain HTTP calls made outside a vendor SDK.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// IsTimeout reports whether err came from a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
