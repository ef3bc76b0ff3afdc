package memory

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
)

// Kind tags the variant of a conversation item.
type Kind string

const (
	KindUserMessage      Kind = "user_message"
	KindAssistantMessage Kind = "assistant_message"
	KindReasoning        Kind = "reasoning"
	KindToolCall         Kind = "tool_call"
	KindToolResult       Kind = "tool_result"
)

// Item is one entry in the conversation log. Which fields are populated
// depends on Kind; unused fields stay zero and are omitted from JSON.
type Item struct {
	Kind Kind `json:"kind"`

	// ID is assigned by the service for assistant, reasoning, and tool call
	// items, and generated locally for user messages.
	ID string `json:"id,omitempty"`

	// Text carries user/assistant message text, or the human-readable
	// summary of a reasoning trace.
	Text string `json:"text,omitempty"`

	// Opaque is the service's replay payload for a reasoning trace. Its
	// content is not interpretable locally; it must be sent back verbatim
	// so the service can resume its chain of thought.
	Opaque string `json:"opaque,omitempty"`

	// Tool call fields. CallID pairs a call with its result.
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`

	// Tool result fields.
	Output  string `json:"output,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// NewUserMessage returns a user item with a locally generated ID.
func NewUserMessage(text string) Item {
	return Item{Kind: KindUserMessage, ID: "user-" + newLocalID(), Text: text}
}

// NewToolResult returns a result item answering the tool call with callID.
func NewToolResult(callID, output string, isError bool) Item {
	return Item{Kind: KindToolResult, CallID: callID, Output: output, IsError: isError}
}

func newLocalID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// rand.Read never fails on supported platforms; keep the item usable.
		return "00000000"
	}
	return hex.EncodeToString(b)
}
