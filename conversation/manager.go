// Package conversation keeps channel conversations inside a token budget.
//
// The Manager is stateless with respect to conversations: callers own the
// message slice and must replace it with whatever AddMessage or Prune returns.
package conversation

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/franktheglock/openllm/model"
)

const (
	// MessageOverhead approximates role and framing tokens per message.
	MessageOverhead = 4
	// ToolCallOverhead approximates wire framing per tool call.
	ToolCallOverhead = 10

	longContentChars = 100
)

// Config bounds a conversation.
type Config struct {
	MaxContextTokens int
	ReserveTokens    int
	MinMessages      int
}

// DefaultConfig returns the stock budget.
func DefaultConfig() Config {
	return Config{
		MaxContextTokens: 32000,
		ReserveTokens:    2048,
		MinMessages:      2,
	}
}

// Manager prunes conversations to fit Config.
type Manager struct {
	cfg       Config
	tokenizer func(modelName string) Tokenizer
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTokenizer makes every model count with tk.
func WithTokenizer(tk Tokenizer) Option {
	return func(m *Manager) {
		m.tokenizer = func(string) Tokenizer { return tk }
	}
}

// NewManager creates a Manager. Zero fields in cfg take the defaults, except
// MinMessages, where a negative value means no floor.
func NewManager(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = def.MaxContextTokens
	}
	if cfg.ReserveTokens < 0 {
		cfg.ReserveTokens = 0
	}
	if cfg.MinMessages == 0 {
		cfg.MinMessages = def.MinMessages
	}
	if cfg.MinMessages < 0 {
		cfg.MinMessages = 0
	}

	m := &Manager{cfg: cfg, tokenizer: TokenizerFor}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the effective budget.
func (m *Manager) Config() Config {
	return m.cfg
}

// AvailableTokens is the budget left for messages after the response reserve.
func (m *Manager) AvailableTokens() int {
	return m.cfg.MaxContextTokens - m.cfg.ReserveTokens
}

// MessageTokens counts one message including framing and tool-call payloads.
func (m *Manager) MessageTokens(msg model.Message, modelName string) int {
	tk := m.tokenizer(modelName)
	n := tk.Count(msg.Content) + MessageOverhead
	for _, call := range msg.ToolCalls {
		payload, err := json.Marshal(map[string]any{
			"id":        call.ID,
			"name":      call.Name,
			"arguments": call.ArgumentsJSON(),
		})
		if err != nil {
			payload = []byte(call.Name)
		}
		n += tk.Count(string(payload)) + ToolCallOverhead
	}
	return n
}

// CountTokens sums MessageTokens over messages.
func (m *Manager) CountTokens(messages []model.Message, modelName string) int {
	total := 0
	for _, msg := range messages {
		total += m.MessageTokens(msg, modelName)
	}
	return total
}

// AddMessage appends msg and prunes the result. The returned slice replaces
// the caller's conversation; the input slice is not modified.
func (m *Manager) AddMessage(conv []model.Message, msg model.Message, modelName string) []model.Message {
	next := make([]model.Message, 0, len(conv)+1)
	next = append(next, conv...)
	next = append(next, msg)
	return m.Prune(next, modelName)
}

// candidate is a run of messages kept or dropped together: a single message,
// or an assistant tool-call message followed by the results answering it.
type candidate struct {
	index    int
	msgs     []model.Message
	tokens   int
	priority float64
}

// Prune selects the messages to keep under the budget. System messages are
// always kept and come first; the rest keep their relative order. A tool-call
// request is never kept without the results that answer it, and vice versa.
func (m *Manager) Prune(messages []model.Message, modelName string) []model.Message {
	if len(messages) == 0 {
		return []model.Message{}
	}

	var system, others []model.Message
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			system = append(system, msg)
		} else {
			others = append(others, msg)
		}
	}

	available := m.AvailableTokens()
	systemTokens := m.CountTokens(system, modelName)

	if len(system) > 0 && systemTokens > available {
		slog.Warn("system messages exceed token budget, keeping first system message only",
			"component", "conversation",
			"system_tokens", systemTokens,
			"available_tokens", available,
		)
		return []model.Message{system[0]}
	}
	available -= systemTokens

	candidates := m.candidates(others, modelName)

	ranked := make([]candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].priority > ranked[b].priority
	})

	kept := make([]candidate, 0, len(ranked))
	used, keptMessages := 0, 0
	for _, c := range ranked {
		if used+c.tokens <= available || keptMessages < m.cfg.MinMessages {
			kept = append(kept, c)
			used += c.tokens
			keptMessages += len(c.msgs)
		}
	}

	sort.Slice(kept, func(a, b int) bool {
		return kept[a].index < kept[b].index
	})

	result := make([]model.Message, 0, len(system)+keptMessages)
	result = append(result, system...)
	for _, c := range kept {
		result = append(result, c.msgs...)
	}

	if dropped := len(others) - keptMessages; dropped > 0 {
		slog.Info("pruned conversation",
			"component", "conversation",
			"model", modelName,
			"dropped", dropped,
			"kept", len(result),
			"tokens", systemTokens+used,
			"budget", m.AvailableTokens(),
		)
	}

	return result
}

// candidates groups others into pruning units. Each unit scores as its
// highest-priority member and costs the sum of its members.
func (m *Manager) candidates(others []model.Message, modelName string) []candidate {
	n := len(others)
	out := make([]candidate, 0, n)
	for i := 0; i < n; {
		c := candidate{index: i}
		end := i + 1
		if calls := others[i].ToolCalls; len(calls) > 0 {
			ids := make(map[string]bool, len(calls))
			for _, call := range calls {
				ids[call.ID] = true
			}
			for end < n && others[end].Role == model.RoleTool && ids[others[end].ToolCallID] {
				end++
			}
		}
		for j := i; j < end; j++ {
			c.msgs = append(c.msgs, others[j])
			c.tokens += m.MessageTokens(others[j], modelName)
			c.priority = max(c.priority, Priority(others[j], j, n))
		}
		out = append(out, c)
		i = end
	}
	return out
}

// Priority scores a message at position index of n non-system messages.
// The result is in [0, 1]; later messages score higher.
func Priority(msg model.Message, index, n int) float64 {
	score := 0.0
	if msg.Role == model.RoleSystem {
		score += 1.0
	}

	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	score += 0.8 * float64(index) / float64(denom)

	if len(msg.ToolCalls) > 0 {
		score += 0.3
	}
	if msg.Role == model.RoleTool {
		score += 0.2
	}
	if len(msg.Content) > longContentChars {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Stats summarizes a conversation for operators.
type Stats struct {
	TotalMessages    int            `json:"total_messages"`
	TotalTokens      int            `json:"total_tokens"`
	MessagesByRole   map[string]int `json:"messages_by_role"`
	AverageTokens    float64        `json:"avg_tokens_per_message"`
	AvailableTokens  int            `json:"available_tokens"`
	MaxContextTokens int            `json:"max_context_tokens"`
}

// Stats reports counts and remaining headroom for conv.
func (m *Manager) Stats(conv []model.Message, modelName string) Stats {
	s := Stats{
		TotalMessages:    len(conv),
		MessagesByRole:   map[string]int{},
		MaxContextTokens: m.cfg.MaxContextTokens,
	}
	for _, msg := range conv {
		s.MessagesByRole[msg.Role]++
	}
	s.TotalTokens = m.CountTokens(conv, modelName)
	if len(conv) > 0 {
		s.AverageTokens = float64(s.TotalTokens) / float64(len(conv))
	}
	s.AvailableTokens = m.AvailableTokens() - s.TotalTokens
	return s
}
