package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/tools"
)

// ServerTool exposes one MCP server tool through the tools.Tool contract,
// named "<serverID>.<toolName>".
type ServerTool struct {
	manager  *Manager
	serverID string
	tool     mcptypes.Tool
}

// Definition implements tools.Tool.
func (t *ServerTool) Definition() model.ToolDefinition {
	def := t.tool
	def.Name = t.serverID + "." + t.tool.Name
	return def
}

// Execute implements tools.Tool. A result flagged as an error by the server
// is returned as an error so the registry renders it "Error: ...".
func (t *ServerTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	res, err := t.manager.CallTool(ctx, t.serverID, t.tool.Name, args)
	if err != nil {
		return "", err
	}
	text := ResultText(res)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

// RegisterTools adds the tools of every connected server to reg and returns
// how many were registered. Name collisions are logged and skipped.
func RegisterTools(reg *tools.Registry, m *Manager) int {
	registered := 0
	for _, id := range m.Servers() {
		serverTools, err := m.Tools(id)
		if err != nil {
			continue
		}
		for _, tool := range serverTools {
			st := &ServerTool{manager: m, serverID: id, tool: tool}
			if err := reg.Register(st); err != nil {
				slog.Warn("skipping MCP tool", "component", "mcp", "server", id, "tool", tool.Name, "error", err)
				continue
			}
			registered++
		}
	}
	return registered
}
