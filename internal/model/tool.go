package model

// SchemaFieldType is the tagged-enum kind of one input-schema field
// (Design Notes §9: "schemas are a tagged enum... no reflection").
type SchemaFieldType string

const (
	SchemaString SchemaFieldType = "string"
	SchemaNumber SchemaFieldType = "number"
	SchemaBool   SchemaFieldType = "boolean"
	SchemaObject SchemaFieldType = "object"
	SchemaArray  SchemaFieldType = "array"
	SchemaEnum   SchemaFieldType = "enum"
)

// SchemaField describes one field of a tool's input schema.
type SchemaField struct {
	Name        string
	Type        SchemaFieldType
	Required    bool
	Enum        []string
	Pattern     string // extraction regex, if declared
	Default     any
	Description string
}

// InputSchema is a JSON-Schema-like structure, walked explicitly by the
// Argument Builder rather than reflected over.
type InputSchema struct {
	Fields []SchemaField
}

// RequiredFields returns the subset of Fields marked Required.
func (s InputSchema) RequiredFields() []SchemaField {
	out := make([]SchemaField, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Field looks up a field by name.
func (s InputSchema) Field(name string) (SchemaField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return SchemaField{}, false
}

// Tool is one invokable operation on one upstream (spec §3 Tool).
type Tool struct {
	ServiceName string
	LocalName   string
	Description string
	InputSchema InputSchema
	Keywords    []string
}

// FullyQualifiedName is serviceName + "/" + localName (spec §3).
func (t Tool) FullyQualifiedName() string {
	return t.ServiceName + "/" + t.LocalName
}

// VirtualServer is a named ordered collection of tools exposed to clients
// as a single MCP surface (spec §3 VirtualServer).
type VirtualServer struct {
	Name    string
	Enabled bool
	// Members is an ordered list of either a bare serviceName (wildcard,
	// all of that service's tools) or an explicit fullyQualifiedName.
	Members []string
}

// MaxVirtualServerTools is the hard IDE-compatibility cap (spec §3, §9).
const MaxVirtualServerTools = 60
