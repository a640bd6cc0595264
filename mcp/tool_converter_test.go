package mcp

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calculatorTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "calculate",
		Description: "Perform calculation",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"description": "The operation to perform",
					"enum":        []any{"add", "subtract", "multiply", "divide"},
				},
				"a": map[string]any{"type": "number", "description": "First operand"},
				"b": map[string]any{"type": "number", "description": "Second operand"},
			},
			Required: []string{"operation", "a", "b"},
		},
	}
}

func TestToOllamaTools(t *testing.T) {
	tests := []struct {
		name     string
		input    []mcptypes.Tool
		expected int
		validate func(t *testing.T, result []api.Tool)
	}{
		{
			name:     "empty tools",
			input:    []mcptypes.Tool{},
			expected: 0,
		},
		{
			name: "single simple tool",
			input: []mcptypes.Tool{{
				Name:        "get_weather",
				Description: "Get current weather",
				InputSchema: mcptypes.ToolInputSchema{Type: "object", Properties: map[string]any{}},
			}},
			expected: 1,
			validate: func(t *testing.T, result []api.Tool) {
				assert.Equal(t, "function", result[0].Type)
				assert.Equal(t, "get_weather", result[0].Function.Name)
				assert.Equal(t, "Get current weather", result[0].Function.Description)
			},
		},
		{
			name:     "tool with properties",
			input:    []mcptypes.Tool{calculatorTool()},
			expected: 1,
			validate: func(t *testing.T, result []api.Tool) {
				params := result[0].Function.Parameters
				assert.Equal(t, "object", params.Type)
				assert.Len(t, params.Required, 3)
				assert.Len(t, params.Properties, 3)

				opProp, ok := params.Properties["operation"]
				require.True(t, ok, "operation property not found")
				assert.Equal(t, "The operation to perform", opProp.Description)
				assert.Len(t, opProp.Enum, 4)
				assert.Equal(t, api.PropertyType{"string"}, opProp.Type)
			},
		},
		{
			name: "missing schema type defaults to object",
			input: []mcptypes.Tool{{
				Name:        "ping",
				InputSchema: mcptypes.ToolInputSchema{},
			}},
			expected: 1,
			validate: func(t *testing.T, result []api.Tool) {
				assert.Equal(t, "object", result[0].Function.Parameters.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToOllamaTools(tt.input)
			require.Len(t, result, tt.expected)
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestOllamaProperty(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		validate func(t *testing.T, result api.ToolProperty)
	}{
		{
			name:  "union type from []any",
			input: map[string]any{"type": []any{"string", "null"}},
			validate: func(t *testing.T, result api.ToolProperty) {
				assert.Equal(t, api.PropertyType{"string", "null"}, result.Type)
			},
		},
		{
			name: "array with items",
			input: map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				assert.Equal(t, api.PropertyType{"array"}, result.Type)
				assert.NotNil(t, result.Items)
			},
		},
		{
			name: "anyOf is converted recursively",
			input: map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "integer"},
				},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				require.Len(t, result.AnyOf, 2)
				assert.Equal(t, api.PropertyType{"integer"}, result.AnyOf[1].Type)
			},
		},
		{
			name: "typed struct round-trips through JSON",
			input: struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}{Type: "boolean", Description: "flag"},
			validate: func(t *testing.T, result api.ToolProperty) {
				assert.Equal(t, api.PropertyType{"boolean"}, result.Type)
				assert.Equal(t, "flag", result.Description)
			},
		},
		{
			name:  "non-object yields empty property",
			input: "nonsense",
			validate: func(t *testing.T, result api.ToolProperty) {
				assert.Empty(t, result.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, ollamaProperty(tt.input))
		})
	}
}

func TestToOpenAITools(t *testing.T) {
	assert.Nil(t, ToOpenAITools(nil))

	result := ToOpenAITools([]mcptypes.Tool{calculatorTool()})
	require.Len(t, result, 1)
	require.NotNil(t, result[0].OfFunction)

	fn := result[0].OfFunction.Function
	assert.Equal(t, "calculate", fn.Name)
	assert.Equal(t, "Perform calculation", fn.Description.Value)
	assert.Equal(t, "object", fn.Parameters["type"])
	assert.Equal(t, []string{"operation", "a", "b"}, fn.Parameters["required"])
}

func TestToAnthropicTools(t *testing.T) {
	assert.Nil(t, ToAnthropicTools(nil))

	result := ToAnthropicTools([]mcptypes.Tool{calculatorTool()})
	require.Len(t, result, 1)
	require.NotNil(t, result[0].OfTool)

	tool := result[0].OfTool
	assert.Equal(t, "calculate", tool.Name)
	assert.Equal(t, "Perform calculation", tool.Description.Value)
	assert.Equal(t, []string{"operation", "a", "b"}, tool.InputSchema.Required)
}

func TestToGeminiTools(t *testing.T) {
	assert.Nil(t, ToGeminiTools(nil))

	withList := calculatorTool()
	withList.InputSchema.Properties["tags"] = map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	withList.InputSchema.Properties["limit"] = map[string]any{"type": []any{"integer", "null"}}

	result := ToGeminiTools([]mcptypes.Tool{withList, {Name: "now", Description: "Current time"}})
	require.Len(t, result, 1)
	decls := result[0].FunctionDeclarations
	require.Len(t, decls, 2)

	calc := decls[0]
	assert.Equal(t, "calculate", calc.Name)
	require.NotNil(t, calc.Parameters)
	assert.Equal(t, genai.TypeObject, calc.Parameters.Type)
	assert.Equal(t, []string{"operation", "a", "b"}, calc.Parameters.Required)
	assert.Equal(t, genai.TypeString, calc.Parameters.Properties["operation"].Type)
	assert.Equal(t, []string{"add", "subtract", "multiply", "divide"}, calc.Parameters.Properties["operation"].Enum)
	assert.Equal(t, genai.TypeNumber, calc.Parameters.Properties["a"].Type)
	assert.Equal(t, genai.TypeArray, calc.Parameters.Properties["tags"].Type)
	assert.Equal(t, genai.TypeString, calc.Parameters.Properties["tags"].Items.Type)
	assert.Equal(t, genai.TypeInteger, calc.Parameters.Properties["limit"].Type)
	assert.True(t, calc.Parameters.Properties["limit"].Nullable)

	assert.Nil(t, decls[1].Parameters, "tools without arguments declare no parameters")
}
