package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/franktheglock/openllm/orchestrator"
	"github.com/franktheglock/openllm/provider"
)

// MessageRequest is the inbound chat message.
type MessageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// MessageResponse carries the reply, pre-split for the platform. The first
// chunk is meant to be sent as a reply to the triggering message.
type MessageResponse struct {
	Reply  string   `json:"reply"`
	Chunks []string `json:"chunks"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) postMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := loggerFrom(ctx)
	channelID := chi.URLParam(r, "channelID")

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, http.StatusBadRequest, "text is required")
		return
	}

	if h.deps.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.TurnTimeout)
		defer cancel()
	}

	// A failed turn still answers with the apology; the cause is logged by the engine.
	reply, _ := h.deps.Engine.HandleTurn(ctx, orchestrator.Turn{
		ChannelID: channelID,
		UserID:    req.UserID,
		Text:      req.Text,
	})

	chunks := SplitMessage(reply, h.deps.MaxMessageLength)
	if strings.TrimSpace(reply) == "" {
		logger.WarnContext(ctx, "empty reply, sending default message", "channel", channelID)
		reply = EmptyReplyMessage
	}
	writeJSON(w, r, http.StatusOK, MessageResponse{Reply: reply, Chunks: chunks})
}

func (h *handler) resetConversation(w http.ResponseWriter, r *http.Request) {
	h.deps.Engine.Reset(chi.URLParam(r, "channelID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) channelStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.deps.Engine.Stats(chi.URLParam(r, "channelID")))
}

func (h *handler) listProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, provider.ProbeAll(r.Context(), h.deps.Providers))
}

func (h *handler) providerModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := strings.ToLower(chi.URLParam(r, "name"))
	p, ok := h.deps.Providers[name]
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown provider "+name)
		return
	}

	fetch := p.GetAvailableModels
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		fetch = p.RefreshModels
	}
	models, err := fetch(ctx)
	if err != nil {
		loggerFrom(ctx).ErrorContext(ctx, "failed to list models", "provider", name, "error", err)
		writeError(w, r, http.StatusBadGateway, "failed to list models")
		return
	}
	writeJSON(w, r, http.StatusOK, models)
}

func (h *handler) usage(w http.ResponseWriter, r *http.Request) {
	if h.deps.Audit == nil {
		writeError(w, r, http.StatusNotFound, "audit store disabled")
		return
	}
	ctx := r.Context()
	totals, err := h.deps.Audit.UsageTotals(ctx, r.URL.Query().Get("channel"))
	if err != nil {
		loggerFrom(ctx).ErrorContext(ctx, "failed to read usage", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to read usage")
		return
	}
	writeJSON(w, r, http.StatusOK, totals)
}

func (h *handler) toolCalls(w http.ResponseWriter, r *http.Request) {
	if h.deps.Audit == nil {
		writeError(w, r, http.StatusNotFound, "audit store disabled")
		return
	}
	ctx := r.Context()
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	calls, err := h.deps.Audit.RecentToolCalls(ctx, limit)
	if err != nil {
		loggerFrom(ctx).ErrorContext(ctx, "failed to read tool calls", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to read tool calls")
		return
	}
	writeJSON(w, r, http.StatusOK, calls)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r.Context()).ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{Error: message})
}
