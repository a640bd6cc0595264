package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franktheglock/openllm/conversation"
	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/orchestrator"
	"github.com/franktheglock/openllm/provider/testutil"
	"github.com/franktheglock/openllm/storage"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type fakeEngine struct {
	mu     sync.Mutex
	turns  []orchestrator.Turn
	resets []string
	reply  string
	err    error
}

func (f *fakeEngine) HandleTurn(_ context.Context, t orchestrator.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, t)
	return f.reply, f.err
}

func (f *fakeEngine) Reset(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, channelID)
}

func (f *fakeEngine) Stats(string) conversation.Stats {
	return conversation.Stats{TotalMessages: 3, MessagesByRole: map[string]int{"user": 1}}
}

type fakeAudit struct {
	channel string
	limit   int
	err     error
}

func (f *fakeAudit) UsageTotals(_ context.Context, channelID string) (storage.UsageTotals, error) {
	f.channel = channelID
	return storage.UsageTotals{Turns: 2, TokensUsed: 40, CostUSD: 0.5}, f.err
}

func (f *fakeAudit) RecentToolCalls(_ context.Context, limit int) ([]storage.ToolCall, error) {
	f.limit = limit
	return []storage.ToolCall{{ID: 1, ToolCallRecord: model.ToolCallRecord{ToolName: "calculate", Success: true}}}, f.err
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name       string
		engine     *fakeEngine
		body       string
		maxLen     int
		wantStatus int
		wantReply  string
		wantChunks []string
	}{
		{
			name:       "reply",
			engine:     &fakeEngine{reply: "Hello!"},
			body:       `{"user_id":"u1","text":"Hi"}`,
			wantStatus: http.StatusOK,
			wantReply:  "Hello!",
			wantChunks: []string{"Hello!"},
		},
		{
			name:       "split reply",
			engine:     &fakeEngine{reply: "abcdefgh"},
			body:       `{"user_id":"u1","text":"Hi"}`,
			maxLen:     3,
			wantStatus: http.StatusOK,
			wantReply:  "abcdefgh",
			wantChunks: []string{"abc", "def", "gh"},
		},
		{
			name:       "failed turn answers with apology",
			engine:     &fakeEngine{reply: orchestrator.ApologyMessage, err: errors.New("boom")},
			body:       `{"user_id":"u1","text":"Hi"}`,
			wantStatus: http.StatusOK,
			wantReply:  orchestrator.ApologyMessage,
			wantChunks: []string{orchestrator.ApologyMessage},
		},
		{
			name:       "empty reply",
			engine:     &fakeEngine{reply: "  "},
			body:       `{"user_id":"u1","text":"Hi"}`,
			wantStatus: http.StatusOK,
			wantReply:  EmptyReplyMessage,
			wantChunks: []string{EmptyReplyMessage},
		},
		{
			name:       "malformed body",
			engine:     &fakeEngine{},
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing text",
			engine:     &fakeEngine{},
			body:       `{"user_id":"u1"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(Deps{Engine: tt.engine, MaxMessageLength: tt.maxLen})
			rec := serve(t, h, http.MethodPost, "/v1/channels/c42/messages", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, tt.engine.turns)
				return
			}

			var resp MessageResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantReply, resp.Reply)
			assert.Equal(t, tt.wantChunks, resp.Chunks)

			require.Len(t, tt.engine.turns, 1)
			assert.Equal(t, orchestrator.Turn{ChannelID: "c42", UserID: "u1", Text: "Hi"}, tt.engine.turns[0])
		})
	}
}

func TestConversationRoutes(t *testing.T) {
	engine := &fakeEngine{}
	h := NewRouter(Deps{Engine: engine})

	rec := serve(t, h, http.MethodDelete, "/v1/channels/c1/conversation", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"c1"}, engine.resets)

	rec = serve(t, h, http.MethodGet, "/v1/channels/c1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats conversation.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 3, stats.TotalMessages)

	rec = serve(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = serve(t, h, http.MethodGet, "/v1/channels/c1/messages", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProviderRoutes(t *testing.T) {
	healthy := testutil.NewMockProvider("mock")
	var refreshed bool
	healthy.ModelsFunc = func(ctx context.Context) ([]model.ModelInfo, error) {
		refreshed = true
		return []model.ModelInfo{{ID: "m1", Provider: "mock"}}, nil
	}
	broken := testutil.NewMockProvider("broken")
	broken.ModelsFunc = func(context.Context) ([]model.ModelInfo, error) {
		return nil, errors.New("connection refused")
	}

	h := NewRouter(Deps{
		Engine:    &fakeEngine{},
		Providers: map[string]model.Provider{"mock": healthy, "broken": broken},
	})

	t.Run("models", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/v1/providers/Mock/models?refresh=true", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var models []model.ModelInfo
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&models))
		require.Len(t, models, 1)
		assert.Equal(t, "m1", models[0].ID)
		assert.True(t, refreshed)
	})

	t.Run("unknown provider", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/v1/providers/nope/models", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/v1/providers/broken/models", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("probe all", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/v1/providers", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var results []struct {
			Provider string `json:"provider"`
			Valid    bool   `json:"valid"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
		require.Len(t, results, 2)
		assert.Equal(t, "broken", results[0].Provider)
		assert.False(t, results[0].Valid)
		assert.Equal(t, "mock", results[1].Provider)
		assert.True(t, results[1].Valid)
	})
}

func TestAuditRoutes(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := NewRouter(Deps{Engine: &fakeEngine{}})
		assert.Equal(t, http.StatusNotFound, serve(t, h, http.MethodGet, "/v1/usage", "").Code)
		assert.Equal(t, http.StatusNotFound, serve(t, h, http.MethodGet, "/v1/tool-calls", "").Code)
	})

	t.Run("usage", func(t *testing.T) {
		audit := &fakeAudit{}
		h := NewRouter(Deps{Engine: &fakeEngine{}, Audit: audit})
		rec := serve(t, h, http.MethodGet, "/v1/usage?channel=c7", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "c7", audit.channel)
		assert.JSONEq(t, `{"turns":2,"tokens_used":40,"cost_usd":0.5}`, rec.Body.String())
	})

	t.Run("tool calls", func(t *testing.T) {
		audit := &fakeAudit{}
		h := NewRouter(Deps{Engine: &fakeEngine{}, Audit: audit})

		rec := serve(t, h, http.MethodGet, "/v1/tool-calls", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 50, audit.limit)

		rec = serve(t, h, http.MethodGet, "/v1/tool-calls?limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, audit.limit)
		assert.Contains(t, rec.Body.String(), `"tool_name":"calculate"`)

		rec = serve(t, h, http.MethodGet, "/v1/tool-calls?limit=zero", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		h := NewRouter(Deps{Engine: &fakeEngine{}, Audit: &fakeAudit{err: errors.New("locked")}})
		assert.Equal(t, http.StatusInternalServerError, serve(t, h, http.MethodGet, "/v1/usage", "").Code)
	})
}
