package mcp

import (
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/franktheglock/openllm/config"
)

// Transport names accepted in [[mcp_servers]].
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "http"
)

// serverProcess is a connected MCP server.
type serverProcess struct {
	cfg    config.MCPServerConfig
	client *client.Client
	cmd    *exec.Cmd // nil for remote servers
	tools  []mcptypes.Tool
}
