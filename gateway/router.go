// Package gateway exposes the turn engine over HTTP: inbound chat messages
// come in, split replies go out.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/franktheglock/openllm/conversation"
	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/orchestrator"
	"github.com/franktheglock/openllm/storage"
)

// Engine runs turns and manages channel conversations.
type Engine interface {
	HandleTurn(ctx context.Context, t orchestrator.Turn) (string, error)
	Reset(channelID string)
	Stats(channelID string) conversation.Stats
}

// AuditReader serves operator queries over the audit log.
type AuditReader interface {
	UsageTotals(ctx context.Context, channelID string) (storage.UsageTotals, error)
	RecentToolCalls(ctx context.Context, limit int) ([]storage.ToolCall, error)
}

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine           Engine
	Providers        map[string]model.Provider
	Audit            AuditReader // optional
	MaxMessageLength int
	TurnTimeout      time.Duration
}

// NewRouter creates the HTTP router.
func NewRouter(deps Deps) http.Handler {
	h := &handler{deps: deps}
	if h.deps.MaxMessageLength <= 0 {
		h.deps.MaxMessageLength = DefaultMaxMessageLength
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/channels/{channelID}", func(r chi.Router) {
			r.Post("/messages", h.postMessage)
			r.Delete("/conversation", h.resetConversation)
			r.Get("/stats", h.channelStats)
		})
		r.Get("/providers", h.listProviders)
		r.Get("/providers/{name}/models", h.providerModels)
		r.Get("/usage", h.usage)
		r.Get("/tool-calls", h.toolCalls)
	})

	return r
}
