// Package tools holds the tool registry and the built-in tools.
//
// The registry is read on every turn and written only by administrative
// calls, so readers work off an immutable snapshot swapped in on each write.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/franktheglock/openllm/model"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 30 * time.Second

// ErrToolExists is returned when registering a duplicate name.
var ErrToolExists = errors.New("tool already registered")

// Tool is an executable capability the model can request.
//
// Execute should report bad or missing arguments in the returned text rather
// than as an error. A returned error is rendered as "Error: <message>".
type Tool interface {
	Definition() model.ToolDefinition
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Result is the outcome of one Execute call on the registry.
type Result struct {
	Output  string
	Success bool
	Error   string
}

type snapshot struct {
	order []string
	tools map[string]Tool
}

// Registry maps tool names to tools.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	timeout time.Duration
}

// NewRegistry creates an empty registry. A non-positive timeout uses DefaultTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Registry{timeout: timeout}
	r.current.Store(&snapshot{tools: map[string]Tool{}})
	return r
}

// Register adds t under its definition name.
func (r *Registry) Register(t Tool) error {
	name := t.Definition().Name
	if name == "" {
		return fmt.Errorf("tool has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	if _, ok := old.tools[name]; ok {
		return fmt.Errorf("%w: %s", ErrToolExists, name)
	}

	next := &snapshot{
		order: append(append([]string(nil), old.order...), name),
		tools: make(map[string]Tool, len(old.tools)+1),
	}
	for k, v := range old.tools {
		next.tools[k] = v
	}
	next.tools[name] = t
	r.current.Store(next)
	return nil
}

// Unregister removes name. It reports whether the tool was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	if _, ok := old.tools[name]; !ok {
		return false
	}

	next := &snapshot{tools: make(map[string]Tool, len(old.tools))}
	for _, n := range old.order {
		if n == name {
			continue
		}
		next.order = append(next.order, n)
		next.tools[n] = old.tools[n]
	}
	r.current.Store(next)
	return true
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.current.Load().tools[name]
	return t, ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.current.Load().order...)
}

// Definitions returns the definitions for enabled, in the given order,
// skipping unknown names. An empty list selects every tool.
func (r *Registry) Definitions(enabled []string) []model.ToolDefinition {
	snap := r.current.Load()
	names := enabled
	if len(names) == 0 {
		names = snap.order
	}

	defs := make([]model.ToolDefinition, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		t, ok := snap.tools[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		defs = append(defs, t.Definition())
	}
	return defs
}

// NotFoundMessage is the result text for an unknown tool.
func NotFoundMessage(name string) string {
	return fmt.Sprintf("Tool %s not found", name)
}

// TimeoutMessage is the result text for a tool that ran out of time.
const TimeoutMessage = "Tool execution failed: timeout"

// Execute runs the named tool. Failures are folded into the Result and
// never returned to the caller.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	snap := r.current.Load()
	t, ok := snap.tools[name]
	if !ok {
		msg := NotFoundMessage(name)
		attrs := []any{"component", "tools", "tool", name}
		if matches := fuzzy.Find(name, snap.order); len(matches) > 0 {
			attrs = append(attrs, "closest", matches[0].Str)
		}
		slog.Warn("model requested unknown tool", attrs...)
		return Result{Output: msg, Error: msg}
	}

	if args == nil {
		args = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("%v", p)}
			}
		}()
		out, err := t.Execute(ctx, args)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			slog.Error("tool execution failed", "component", "tools", "tool", name, "error", o.err)
			msg := "Error: " + o.err.Error()
			return Result{Output: msg, Error: o.err.Error()}
		}
		return Result{Output: o.out, Success: true}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("tool execution timed out", "component", "tools", "tool", name, "timeout", r.timeout)
			return Result{Output: TimeoutMessage, Error: "timeout"}
		}
		msg := "Error: " + ctx.Err().Error()
		return Result{Output: msg, Error: ctx.Err().Error()}
	}
}
