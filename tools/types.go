package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/fernwell/reasonloop/internal/provider"
)

// ToolDefinition binds a tool name to its schema and handler. The registry
// is fixed before a conversation begins and never changes during a turn.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema provider.InputSchema
	Function    func(input json.RawMessage) (string, error)
}

// Schema converts the definition into the neutral form advertised to the
// completion service.
func (d ToolDefinition) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.InputSchema,
	}
}

// GenerateSchema reflects T into a JSON Schema for tool arguments.
// Field descriptions come from jsonschema_description struct tags.
func GenerateSchema[T any]() provider.InputSchema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return provider.InputSchema{
		Type:       "object",
		Properties: schema.Properties,
		Required:   schema.Required,
	}
}
