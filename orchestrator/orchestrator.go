// Package orchestrator drives one user turn through a provider and the tool
// registry, and serializes turns per channel.
//
// A turn is a bounded loop: ask the model, run whatever tools it requests,
// feed the results back, and ask again until it answers in plain text or the
// depth limit is reached.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/franktheglock/openllm/conversation"
	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/tools"
)

const (
	// DefaultMaxDepth bounds the tool rounds of one turn.
	DefaultMaxDepth = 5

	// FallbackMessage replaces an empty answer when no tool produced output.
	FallbackMessage = "I've processed your request using the available tools."

	auditResultLimit = 1000
)

// Request is one user turn.
type Request struct {
	ChannelID string
	UserID    string
	Provider  model.Provider

	// Conversation is the channel history so far. It is not modified.
	Conversation []model.Message
	UserMessage  string
	Options      model.CompletionOptions
}

// Result is the outcome of a completed turn.
type Result struct {
	Content      string
	Conversation []model.Message
	Model        string
	Usage        model.Usage

	// Rounds counts provider calls; ToolCalls counts executed tool calls.
	Rounds        int
	ToolCalls     int
	DepthExceeded bool
}

// toolOutcome is one executed call, kept for fallback synthesis.
type toolOutcome struct {
	name   string
	output string
}

// Orchestrator runs turns. It holds no per-channel state and is safe for
// concurrent use.
type Orchestrator struct {
	conversations   *conversation.Manager
	tools           *tools.Registry
	audit           model.AuditLogger
	maxDepth        int
	providerTimeout time.Duration
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMaxDepth sets the maximum number of tool rounds per turn.
func WithMaxDepth(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithAuditLogger records every executed tool call.
func WithAuditLogger(a model.AuditLogger) Option {
	return func(o *Orchestrator) { o.audit = a }
}

// WithProviderTimeout bounds each provider call.
func WithProviderTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.providerTimeout = d }
}

// New creates an Orchestrator over conv and reg.
func New(conv *conversation.Manager, reg *tools.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		conversations: conv,
		tools:         reg,
		maxDepth:      DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Definitions returns the tool definitions to offer for the enabled names.
// An empty list offers every registered tool.
func (o *Orchestrator) Definitions(enabled []string) []model.ToolDefinition {
	if o.tools == nil {
		return nil
	}
	return o.tools.Definitions(enabled)
}

// Run executes one turn. Provider errors are returned unchanged in kind;
// tool failures are fed back to the model and never fail the turn.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	modelName := req.Options.Model
	conv := o.conversations.AddMessage(slices.Clone(req.Conversation), model.Message{
		Role:      model.RoleUser,
		Content:   req.UserMessage,
		Timestamp: time.Now(),
	}, modelName)

	result := &Result{}
	resp, err := o.complete(ctx, req, conv)
	if err != nil {
		return nil, err
	}
	result.Rounds++
	result.Usage = resp.Usage

	var outcomes []toolOutcome
	for depth := 0; resp.HasToolCalls(); depth++ {
		if depth >= o.maxDepth {
			slog.Warn("maximum tool call depth reached, returning last response",
				"component", "orchestrator", "channel", req.ChannelID, "depth", depth)
			result.DepthExceeded = true
			break
		}

		conv = o.conversations.AddMessage(conv, model.Message{
			Role:      model.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Timestamp: time.Now(),
		}, modelName)

		for _, call := range resp.ToolCalls {
			out := o.executeTool(ctx, req, call)
			outcomes = append(outcomes, out)
			result.ToolCalls++
			conv = o.conversations.AddMessage(conv, model.NewToolResult(call, out.output), modelName)
		}

		slog.Debug("requesting follow-up completion",
			"component", "orchestrator", "channel", req.ChannelID, "messages", len(conv), "depth", depth+1)

		resp, err = o.complete(ctx, req, conv)
		if err != nil {
			return nil, err
		}
		result.Rounds++
		result.Usage = result.Usage.Add(resp.Usage)
	}

	content := resp.Content
	if strings.TrimSpace(content) == "" {
		slog.Warn("model returned an empty response, using tool result summary",
			"component", "orchestrator", "channel", req.ChannelID, "tool_results", len(outcomes))
		content = fallbackContent(outcomes)
	}

	result.Content = content
	result.Model = resp.Model
	if result.Model == "" {
		result.Model = modelName
	}
	result.Conversation = o.conversations.AddMessage(conv, model.Message{
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}, modelName)
	return result, nil
}

func (o *Orchestrator) complete(ctx context.Context, req Request, conv []model.Message) (*model.Response, error) {
	if o.providerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.providerTimeout)
		defer cancel()
	}

	resp, err := req.Provider.Complete(ctx, conv, req.Options)
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", req.Provider.Name(), err)
	}
	if resp == nil {
		return &model.Response{}, nil
	}
	return resp, nil
}

func (o *Orchestrator) executeTool(ctx context.Context, req Request, call model.ToolCall) toolOutcome {
	args, err := tools.ParseArguments(call.Arguments)
	if err != nil {
		slog.Warn("could not parse tool arguments, using empty set",
			"component", "orchestrator", "tool", call.Name, "error", err)
	}

	res := o.tools.Execute(ctx, call.Name, args)
	slog.Debug("tool executed", "component", "orchestrator", "tool", call.Name,
		"success", res.Success, "result_len", len(res.Output))

	o.recordToolCall(ctx, req, call.Name, args, res)
	return toolOutcome{name: call.Name, output: res.Output}
}

func (o *Orchestrator) recordToolCall(ctx context.Context, req Request, name string, args map[string]any, res tools.Result) {
	if o.audit == nil {
		return
	}

	params, err := json.Marshal(args)
	if err != nil {
		params = []byte("{}")
	}
	rec := model.ToolCallRecord{
		ChannelID:    req.ChannelID,
		UserID:       req.UserID,
		ToolName:     name,
		Parameters:   string(params),
		Result:       truncateRunes(res.Output, auditResultLimit),
		Success:      res.Success,
		ErrorMessage: res.Error,
	}
	if err := o.audit.LogToolCall(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("failed to record tool call", "component", "orchestrator", "tool", name, "error", err)
	}
}

// fallbackContent builds a reply from this turn's tool results.
func fallbackContent(outcomes []toolOutcome) string {
	lines := make([]string, 0, len(outcomes))
	for _, out := range outcomes {
		lines = append(lines, out.name+": "+out.output)
	}
	if text := strings.Join(lines, "\n"); strings.TrimSpace(text) != "" {
		return text
	}
	return FallbackMessage
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
