// Package tools defines tool contracts and implementations.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive the input schema from a Go struct.
//   - Demo tools: get_city_uuid, get_weather, get_current_time.
//
// Handlers take raw JSON arguments and return a string; any handler error
// is folded into the conversation as an error result rather than raised.
package tools
