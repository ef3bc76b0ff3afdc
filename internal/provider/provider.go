// Package provider defines the neutral contract between the orchestrator
// and a remote completion service. Concrete clients live in subpackages
// and convert these types to and from their wire formats.
package provider

import (
	"context"

	"github.com/fernwell/reasonloop/memory"
)

// InputSchema is a JSON Schema object describing a tool's arguments.
// Properties holds the reflected schema of the tool's input struct and
// marshals directly into the wire payload.
type InputSchema struct {
	Type       string   `json:"type"`
	Properties any      `json:"properties,omitempty"`
	Required   []string `json:"required,omitempty"`
}

// ToolSchema advertises one registered tool to the service.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// Usage aggregates the token metrics reported with a response. Providers
// that do not report a field leave it zero.
type Usage struct {
	InputTokens     int64
	OutputTokens    int64
	ReasoningTokens int64
	CachedTokens    int64
}

// Add accumulates v into u.
func (u *Usage) Add(v Usage) {
	u.InputTokens += v.InputTokens
	u.OutputTokens += v.OutputTokens
	u.ReasoningTokens += v.ReasoningTokens
	u.CachedTokens += v.CachedTokens
}

// Request carries the full conversation state plus the advertised tools.
// Model, reasoning effort, and credentials are client configuration.
type Request struct {
	Items []memory.Item
	Tools []ToolSchema
}

// Response is the classified service output: items in the order the
// service produced them, restricted to assistant message, reasoning, and
// tool call kinds.
type Response struct {
	Items []memory.Item
	Usage Usage
}

// Provider is a remote completion service. CreateTurn performs exactly one
// blocking round trip; it never retries.
type Provider interface {
	CreateTurn(ctx context.Context, req Request) (*Response, error)
}
