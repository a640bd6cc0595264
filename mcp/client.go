package mcp

import (
	"encoding/json"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ResultText flattens a tool result into the text handed back to the model.
// Text parts are joined with newlines; other content is rendered as JSON.
func ResultText(res *mcptypes.CallToolResult) string {
	if res == nil {
		return ""
	}

	parts := make([]string, 0, len(res.Content))
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcptypes.TextContent:
			parts = append(parts, c.Text)
		case *mcptypes.TextContent:
			parts = append(parts, c.Text)
		default:
			if data, err := json.Marshal(c); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}
