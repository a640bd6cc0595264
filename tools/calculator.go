package tools

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/franktheglock/openllm/model"
)

// arithmeticOnly rejects identifiers so expressions cannot reach expr builtins.
var arithmeticOnly = regexp.MustCompile(`^[0-9+\-*/%^().\s]+$`)

// Calculator evaluates arithmetic expressions.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Definition() model.ToolDefinition {
	return mcptypes.Tool{
		Name:        "calculate",
		Description: "Evaluate a mathematical expression. Supports +, -, *, /, **, ^, % operators and parentheses. Example: '2 + 2', '(10 * 5) / 2', '2 ** 8'",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "The mathematical expression to evaluate (e.g., '2 + 2', '10 * 5 / 2')",
				},
			},
			Required: []string{"expression"},
		},
	}
}

func (c *Calculator) Execute(ctx context.Context, args map[string]any) (string, error) {
	expression, _ := args["expression"].(string)
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return "Error: Missing required argument 'expression'", nil
	}
	if !arithmeticOnly.MatchString(expression) || strings.Contains(expression, "//") {
		return "Error: Invalid mathematical expression. Please use valid math operators (+, -, *, /, **, ^, %) and parentheses.", nil
	}

	out, err := expr.Eval(expression, nil)
	if err != nil {
		if strings.Contains(err.Error(), "divide by zero") {
			return "Error: Division by zero", nil
		}
		return "Error: Invalid mathematical expression. Please use valid math operators (+, -, *, /, **, ^, %) and parentheses.", nil
	}

	formatted, err := formatNumber(out)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return fmt.Sprintf("**%s** = **%s**", expression, formatted), nil
}

func formatNumber(v any) (string, error) {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return "", fmt.Errorf("Division by zero")
		}
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10), nil
		}
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expression did not produce a number")
	}
}
