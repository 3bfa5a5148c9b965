package upstream

import (
	"encoding/json"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

// wireSchema is the JSON-Schema subset MCP tool descriptors use for
// inputSchema. Only the shapes the Argument Builder needs are decoded
// (spec §3 Tool: "schemas are walked explicitly, never reflected over").
type wireSchema struct {
	Properties map[string]wireProperty `json:"properties"`
	Required   []string                `json:"required"`
}

type wireProperty struct {
	Type        string   `json:"type"`
	Enum        []string `json:"enum"`
	Pattern     string   `json:"pattern"`
	Default     any      `json:"default"`
	Description string   `json:"description"`
}

func parseSchema(raw json.RawMessage) model.InputSchema {
	if len(raw) == 0 {
		return model.InputSchema{}
	}
	var ws wireSchema
	if err := json.Unmarshal(raw, &ws); err != nil {
		return model.InputSchema{}
	}

	required := make(map[string]bool, len(ws.Required))
	for _, name := range ws.Required {
		required[name] = true
	}

	fields := make([]model.SchemaField, 0, len(ws.Properties))
	for name, prop := range ws.Properties {
		fields = append(fields, model.SchemaField{
			Name:        name,
			Type:        fieldType(prop),
			Required:    required[name],
			Enum:        prop.Enum,
			Pattern:     prop.Pattern,
			Default:     prop.Default,
			Description: prop.Description,
		})
	}
	return model.InputSchema{Fields: fields}
}

func fieldType(prop wireProperty) model.SchemaFieldType {
	if len(prop.Enum) > 0 {
		return model.SchemaEnum
	}
	switch prop.Type {
	case "number", "integer":
		return model.SchemaNumber
	case "boolean":
		return model.SchemaBool
	case "object":
		return model.SchemaObject
	case "array":
		return model.SchemaArray
	default:
		return model.SchemaString
	}
}
