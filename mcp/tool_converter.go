package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/generative-ai-go/genai"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// ToOllamaTools converts tool descriptors to the Ollama API tool format.
func ToOllamaTools(defs []mcptypes.Tool) []api.Tool {
	if len(defs) == 0 {
		return nil
	}
	ollamaTools := make([]api.Tool, 0, len(defs))
	for _, def := range defs {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  ollamaParameters(def.InputSchema),
			},
		})
	}
	return ollamaTools
}

func ollamaParameters(inputSchema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       schemaType(inputSchema.Type),
		Required:   inputSchema.Required,
		Properties: make(map[string]api.ToolProperty, len(inputSchema.Properties)),
	}
	if inputSchema.Defs != nil {
		params.Defs = inputSchema.Defs
	}
	for propName, propValue := range inputSchema.Properties {
		params.Properties[propName] = ollamaProperty(propValue)
	}
	return params
}

func ollamaProperty(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := asSchemaMap(propValue)
	if !ok {
		return toolProp
	}

	// type can be a string or a list of strings
	switch t := propMap["type"].(type) {
	case string:
		toolProp.Type = api.PropertyType{t}
	case []string:
		toolProp.Type = api.PropertyType(t)
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		toolProp.Type = api.PropertyType(types)
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}
	if enumSlice, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enumSlice
	}
	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}
	if anyOfSlice, ok := propMap["anyOf"].([]any); ok {
		anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
		for _, item := range anyOfSlice {
			anyOfProps = append(anyOfProps, ollamaProperty(item))
		}
		toolProp.AnyOf = anyOfProps
	}

	return toolProp
}

// ToOpenAITools converts tool descriptors to the OpenAI chat-completions
// format, which OpenRouter and other compatible endpoints share.
//
//	{"type": "function", "function": {"name": ..., "description": ..., "parameters": {...}}}
func ToOpenAITools(defs []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(defs) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(defs))
	for i, def := range defs {
		params := openai.FunctionParameters{
			"type":       schemaType(def.InputSchema.Type),
			"properties": nonNilProperties(def.InputSchema.Properties),
		}
		if len(def.InputSchema.Required) > 0 {
			params["required"] = def.InputSchema.Required
		}
		if def.InputSchema.Defs != nil {
			params["$defs"] = def.InputSchema.Defs
		}

		fn := openai.FunctionDefinitionParam{
			Name:       def.Name,
			Parameters: params,
		}
		if def.Description != "" {
			fn.Description = openai.String(def.Description)
		}
		result[i] = openai.ChatCompletionFunctionTool(fn)
	}
	return result
}

// ToAnthropicTools converts tool descriptors to Anthropic tools, which carry
// the schema as input_schema.
func ToAnthropicTools(defs []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		// Type defaults to "object" when omitted
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: nonNilProperties(def.InputSchema.Properties),
		}
		if len(def.InputSchema.Required) > 0 {
			inputSchema.Required = def.InputSchema.Required
		}
		if def.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": def.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, def.Name)
		if def.Description != "" {
			result[i].OfTool.Description = anthropic.String(def.Description)
		}
	}
	return result
}

// ToGeminiTools converts tool descriptors to a single Gemini tool holding one
// function declaration per descriptor. Gemini accepts an OpenAPI subset, so
// unsupported keywords ($defs, anyOf) are dropped.
func ToGeminiTools(defs []mcptypes.Tool) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decl := &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
		}
		if len(def.InputSchema.Properties) > 0 {
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(def.InputSchema.Properties)),
				Required:   def.InputSchema.Required,
			}
			for name, prop := range def.InputSchema.Properties {
				decl.Parameters.Properties[name] = geminiSchema(prop)
			}
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func geminiSchema(propValue any) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeString}

	propMap, ok := asSchemaMap(propValue)
	if !ok {
		return schema
	}

	typeName, _ := propMap["type"].(string)
	if list, ok := propMap["type"].([]any); ok {
		// ["string", "null"] style unions collapse to the first non-null type.
		for _, v := range list {
			if s, ok := v.(string); ok && s != "null" {
				typeName = s
				break
			}
		}
		schema.Nullable = true
	}
	schema.Type = geminiType(typeName)

	if desc, ok := propMap["description"].(string); ok {
		schema.Description = desc
	}
	if format, ok := propMap["format"].(string); ok {
		schema.Format = format
	}
	if enumSlice, ok := propMap["enum"].([]any); ok {
		for _, v := range enumSlice {
			schema.Enum = append(schema.Enum, fmt.Sprint(v))
		}
	}
	if items, ok := propMap["items"]; ok {
		schema.Items = geminiSchema(items)
	}
	if props, ok := propMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			schema.Properties[name] = geminiSchema(prop)
		}
	}
	if required, ok := propMap["required"].([]any); ok {
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if schema.Type == genai.TypeArray && schema.Items == nil {
		schema.Items = &genai.Schema{Type: genai.TypeString}
	}
	return schema
}

func geminiType(name string) genai.Type {
	switch name {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// asSchemaMap normalizes a property schema to a generic map, round-tripping
// through JSON for typed values.
func asSchemaMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func schemaType(t string) string {
	if t == "" {
		return "object"
	}
	return t
}

func nonNilProperties(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	return props
}
