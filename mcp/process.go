package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/franktheglock/openllm/config"
)

// ProtocolVersion is the MCP revision announced during initialization.
const ProtocolVersion = "2025-06-18"

const closeTimeout = time.Second

// Manager connects to the configured MCP servers and keeps their tool lists.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*serverProcess
}

// NewManager returns a manager with no servers.
func NewManager() *Manager {
	return &Manager{servers: make(map[string]*serverProcess)}
}

// StartAll starts every enabled server. Failures are logged and returned
// keyed by server id; the remaining servers still start.
func (m *Manager) StartAll(ctx context.Context, servers []config.MCPServerConfig) map[string]error {
	failed := make(map[string]error)
	for _, cfg := range servers {
		if !cfg.Enabled {
			continue
		}
		if err := m.Start(ctx, cfg); err != nil {
			slog.Warn("failed to start MCP server", "component", "mcp", "server", cfg.ID, "error", err)
			failed[cfg.ID] = err
		}
	}
	return failed
}

// Start connects to one server, performs the MCP handshake and loads its tools.
func (m *Manager) Start(ctx context.Context, cfg config.MCPServerConfig) error {
	if cfg.ID == "" {
		return errors.New("MCP server has no id")
	}
	if strings.Contains(cfg.ID, ".") {
		return fmt.Errorf("MCP server id %q must not contain '.'", cfg.ID)
	}

	m.mu.RLock()
	_, running := m.servers[cfg.ID]
	m.mu.RUnlock()
	if running {
		return fmt.Errorf("MCP server %s already running", cfg.ID)
	}

	c, cmd, err := newClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to MCP server %s: %w", cfg.ID, err)
	}
	return m.attach(ctx, cfg, c, cmd)
}

// attach initializes an already started client and records it.
func (m *Manager) attach(ctx context.Context, cfg config.MCPServerConfig, c *client.Client, cmd *exec.Cmd) error {
	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "openllm",
				Version: "1.0.0",
			},
		},
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		closeClient(cfg.ID, c, cmd)
		return fmt.Errorf("failed to initialize MCP server %s: %w", cfg.ID, err)
	}

	toolsResult, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		closeClient(cfg.ID, c, cmd)
		return fmt.Errorf("failed to list tools for %s: %w", cfg.ID, err)
	}

	m.mu.Lock()
	m.servers[cfg.ID] = &serverProcess{cfg: cfg, client: c, cmd: cmd, tools: toolsResult.Tools}
	m.mu.Unlock()

	slog.Info("MCP server connected", "component", "mcp", "server", cfg.ID,
		"transport", transportName(cfg), "tools", len(toolsResult.Tools))
	return nil
}

// Stop disconnects a server and kills its process if it has one.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	proc, ok := m.servers[id]
	delete(m.servers, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("MCP server %s not found", id)
	}
	closeClient(id, proc.client, proc.cmd)
	return nil
}

// Shutdown stops every server in parallel.
func (m *Manager) Shutdown(ctx context.Context) error {
	ids := m.Servers()

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.Stop(ctx, id)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Servers returns the ids of connected servers, sorted.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.servers))
}

// Tools returns the tool list a server advertised.
func (m *Manager) Tools(id string) ([]mcptypes.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proc, ok := m.servers[id]
	if !ok {
		return nil, fmt.Errorf("MCP server %s not running", id)
	}
	return slices.Clone(proc.tools), nil
}

// RefreshTools reloads a server's tool list.
func (m *Manager) RefreshTools(ctx context.Context, id string) error {
	c, err := m.client(id)
	if err != nil {
		return err
	}
	toolsResult, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to refresh tools for %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if proc, ok := m.servers[id]; ok {
		proc.tools = toolsResult.Tools
	}
	return nil
}

// CallTool invokes toolName on server id.
func (m *Manager) CallTool(ctx context.Context, id, toolName string, args map[string]any) (*mcptypes.CallToolResult, error) {
	c, err := m.client(id)
	if err != nil {
		return nil, err
	}
	return c.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	})
}

func (m *Manager) client(id string) (*client.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proc, ok := m.servers[id]
	if !ok {
		return nil, fmt.Errorf("MCP server %s not running", id)
	}
	return proc.client, nil
}

func transportName(cfg config.MCPServerConfig) string {
	switch strings.ToLower(cfg.Transport) {
	case "":
		if cfg.URL != "" {
			return TransportSSE
		}
		return TransportStdio
	case "streamable-http", "streamable_http":
		return TransportStreamableHTTP
	default:
		return strings.ToLower(cfg.Transport)
	}
}

// newClient creates and starts a client for cfg's transport.
func newClient(ctx context.Context, cfg config.MCPServerConfig) (*client.Client, *exec.Cmd, error) {
	switch transportName(cfg) {
	case TransportStdio:
		return newStdioClient(cfg)
	case TransportSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		c, err := client.NewSSEMCPClient(cfg.URL, opts...)
		if err != nil {
			return nil, nil, err
		}
		// SSE must be started before Initialize.
		if err := c.GetTransport().Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to start SSE transport: %w", err)
		}
		return c, nil, nil
	case TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		c, err := client.NewStreamableHttpClient(cfg.URL, opts...)
		if err != nil {
			return nil, nil, err
		}
		if err := c.GetTransport().Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to start HTTP transport: %w", err)
		}
		return c, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport type: %s", cfg.Transport)
	}
}

func newStdioClient(cfg config.MCPServerConfig) (*client.Client, *exec.Cmd, error) {
	if cfg.Command == "" {
		return nil, nil, errors.New("stdio transport requires a command")
	}

	var captured *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		captured = cmd
		return cmd, nil
	}

	c, err := client.NewStdioMCPClientWithOptions(cfg.Command, serverEnv(cfg.Env), cfg.Args,
		transport.WithCommandFunc(cmdFunc))
	if err != nil {
		return nil, nil, err
	}
	if captured != nil && captured.Process != nil {
		slog.Debug("started MCP server process", "component", "mcp", "server", cfg.ID, "pid", captured.Process.Pid)
	}
	return c, captured, nil
}

// serverEnv returns the process environment with env layered on top, so PATH
// and friends survive.
func serverEnv(env map[string]string) []string {
	out := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}

// closeClient closes c, waiting at most closeTimeout, then kills cmd.
func closeClient(id string, c *client.Client, cmd *exec.Cmd) {
	if c != nil {
		done := make(chan error, 1)
		go func() { done <- c.Close() }()
		select {
		case err := <-done:
			if err != nil {
				slog.Debug("error closing MCP client", "component", "mcp", "server", id, "error", err)
			}
		case <-time.After(closeTimeout):
			slog.Debug("MCP client close timed out", "component", "mcp", "server", id)
		}
	}
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Debug("error killing MCP server process", "component", "mcp", "server", id, "error", err)
		}
	}
}
