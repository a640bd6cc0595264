package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/franktheglock/openllm/model"
)

// UUIDGenerator produces random or time-based identifiers.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator { return &UUIDGenerator{} }

func (g *UUIDGenerator) Definition() model.ToolDefinition {
	return mcptypes.Tool{
		Name:        "generate_uuid",
		Description: "Generate a random UUID (Universally Unique Identifier). Can generate UUID4 (random), UUID1 (timestamp-based), or formatted versions.",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"version": map[string]any{
					"type":        "string",
					"description": "UUID version to generate: 'uuid4' (random, default) or 'uuid1' (timestamp-based)",
					"enum":        []any{"uuid4", "uuid1"},
				},
				"format": map[string]any{
					"type":        "string",
					"description": "Output format: 'standard' (with hyphens), 'hex' (no hyphens), or 'urn' (URN format)",
					"enum":        []any{"standard", "hex", "urn"},
				},
				"count": map[string]any{
					"type":        "integer",
					"description": "Number of UUIDs to generate (1-10, default: 1)",
					"minimum":     1,
					"maximum":     10,
				},
			},
		},
	}
}

func (g *UUIDGenerator) Execute(ctx context.Context, args map[string]any) (string, error) {
	version := stringArg(args, "version", "uuid4")
	format := stringArg(args, "format", "standard")
	count := min(max(intArg(args, "count", 1), 1), 10)

	ids := make([]string, 0, count)
	for range count {
		var id uuid.UUID
		var err error
		if version == "uuid1" {
			id, err = uuid.NewUUID()
		} else {
			version = "uuid4"
			id, err = uuid.NewRandom()
		}
		if err != nil {
			return "", fmt.Errorf("generating UUID: %w", err)
		}

		switch format {
		case "hex":
			ids = append(ids, strings.ReplaceAll(id.String(), "-", ""))
		case "urn":
			ids = append(ids, id.URN())
		default:
			format = "standard"
			ids = append(ids, id.String())
		}
	}

	if count == 1 {
		return fmt.Sprintf("Generated UUID (%s, %s):\n```\n%s\n```", version, format, ids[0]), nil
	}
	return fmt.Sprintf("Generated %d UUIDs (%s, %s):\n```\n%s\n```", count, version, format, strings.Join(ids, "\n")), nil
}

func stringArg(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return def
}

// intArg accepts JSON numbers, YAML ints and numeric strings.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
			return n
		}
	}
	return def
}
