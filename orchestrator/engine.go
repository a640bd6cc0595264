package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/franktheglock/openllm/config"
	"github.com/franktheglock/openllm/conversation"
	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/tools"
)

// ApologyMessage is the reply sent when a turn fails.
const ApologyMessage = "Sorry, I encountered an error processing your message."

// ErrUnknownProvider is returned when a channel names a provider that was
// not initialized.
var ErrUnknownProvider = errors.New("unknown provider")

// EngineConfig wires an Engine.
type EngineConfig struct {
	Config        *config.Config
	Providers     map[string]model.Provider
	Conversations *conversation.Manager
	Tools         *tools.Registry
	Audit         model.AuditLogger
}

// Turn is one inbound user message.
type Turn struct {
	ChannelID string
	UserID    string
	Text      string
}

type session struct {
	mu   sync.Mutex
	conv []model.Message
}

// Engine owns the per-channel conversations and runs turns against them.
// Turns on the same channel are serialized; different channels run
// concurrently.
type Engine struct {
	cfg           *config.Config
	providers     map[string]model.Provider
	conversations *conversation.Manager
	audit         model.AuditLogger
	orchestrator  *Orchestrator

	mu       sync.Mutex
	sessions map[string]*session
}

// NewEngine creates an Engine.
func NewEngine(ec EngineConfig) *Engine {
	cfg := ec.Config
	if cfg == nil {
		cfg = config.Default()
	}
	providers := make(map[string]model.Provider, len(ec.Providers))
	for name, p := range ec.Providers {
		providers[strings.ToLower(name)] = p
	}

	opts := []Option{
		WithMaxDepth(cfg.LLM.MaxToolDepth),
		WithProviderTimeout(cfg.LLM.ProviderTimeout()),
	}
	if ec.Audit != nil {
		opts = append(opts, WithAuditLogger(ec.Audit))
	}

	return &Engine{
		cfg:           cfg,
		providers:     providers,
		conversations: ec.Conversations,
		audit:         ec.Audit,
		orchestrator:  New(ec.Conversations, ec.Tools, opts...),
		sessions:      make(map[string]*session),
	}
}

// Provider returns the initialized provider registered under name.
func (e *Engine) Provider(name string) (model.Provider, bool) {
	p, ok := e.providers[strings.ToLower(name)]
	return p, ok
}

func (e *Engine) session(channelID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[channelID]
	if !ok {
		s = &session{}
		e.sessions[channelID] = s
	}
	return s
}

// HandleTurn runs one user message through the channel's provider and tools.
// On failure it returns ApologyMessage together with the cause; the channel
// history is left as it was before the turn.
func (e *Engine) HandleTurn(ctx context.Context, t Turn) (string, error) {
	reply, err := e.handleTurn(ctx, t)
	if err != nil {
		slog.Error("turn failed", "component", "engine",
			"channel", t.ChannelID, "user", t.UserID, "error", err)
		return ApologyMessage, err
	}
	return reply, nil
}

func (e *Engine) handleTurn(ctx context.Context, t Turn) (string, error) {
	cc := e.cfg.Channel(t.ChannelID)
	p, ok := e.Provider(cc.Provider)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, cc.Provider)
	}

	s := e.session(t.ChannelID)
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.conv
	if len(conv) == 0 {
		if prompt := cc.EffectiveSystemPrompt(); prompt != "" {
			conv = []model.Message{{Role: model.RoleSystem, Content: prompt, Timestamp: time.Now()}}
		}
	}

	temp := cc.Temperature
	start := time.Now()
	res, err := e.orchestrator.Run(ctx, Request{
		ChannelID:    t.ChannelID,
		UserID:       t.UserID,
		Provider:     p,
		Conversation: conv,
		UserMessage:  t.Text,
		Options: model.CompletionOptions{
			Model:       cc.Model,
			Temperature: &temp,
			MaxTokens:   cc.MaxTokens,
			Tools:       e.orchestrator.Definitions(cc.EnabledTools),
		},
	})
	if err != nil {
		return "", err
	}
	s.conv = res.Conversation

	slog.Info("turn completed", "component", "engine",
		"channel", t.ChannelID, "provider", p.Name(), "model", res.Model,
		"rounds", res.Rounds, "tool_calls", res.ToolCalls,
		"tokens", res.Usage.TotalTokens, "duration", time.Since(start))

	e.recordUsage(ctx, t, p, res)
	return res.Content, nil
}

func (e *Engine) recordUsage(ctx context.Context, t Turn, p model.Provider, res *Result) {
	if e.audit == nil {
		return
	}
	rec := model.UsageRecord{
		ChannelID:  t.ChannelID,
		UserID:     t.UserID,
		Provider:   p.Name(),
		Model:      res.Model,
		TokensUsed: res.Usage.TotalTokens,
		CostUSD:    p.EstimateCost(res.Usage, res.Model),
	}
	if err := e.audit.LogUsage(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("failed to record usage", "component", "engine", "channel", t.ChannelID, "error", err)
	}
}

// Reset forgets the channel's conversation. It waits for an in-flight turn
// on that channel to finish.
func (e *Engine) Reset(channelID string) {
	e.mu.Lock()
	s, ok := e.sessions[channelID]
	delete(e.sessions, channelID)
	e.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.conv = nil
	s.mu.Unlock()
	slog.Info("conversation reset", "component", "engine", "channel", channelID)
}

// Snapshot returns a copy of the channel's committed conversation.
func (e *Engine) Snapshot(channelID string) []model.Message {
	e.mu.Lock()
	s, ok := e.sessions[channelID]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.conv)
}

// Stats summarizes the channel's conversation for its configured model.
func (e *Engine) Stats(channelID string) conversation.Stats {
	cc := e.cfg.Channel(channelID)
	return e.conversations.Stats(e.Snapshot(channelID), cc.Model)
}
