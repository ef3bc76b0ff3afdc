package memory

import "fmt"

// Log is the ordered conversation history. Items can only be appended;
// existing entries are never removed or reordered.
type Log struct {
	items []Item
}

// NewLog returns a log seeded with items, oldest first.
func NewLog(items ...Item) *Log {
	l := &Log{}
	l.Append(items...)
	return l
}

// Append adds items to the end of the log in the given order.
func (l *Log) Append(items ...Item) {
	l.items = append(l.items, items...)
}

// Items returns a copy of the log contents, oldest first. Mutating the
// returned slice does not affect the log.
func (l *Log) Items() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Len reports the number of items in the log.
func (l *Log) Len() int { return len(l.items) }

// OpenCalls returns the call IDs of tool calls that have no matching
// result yet, in call order. A well-formed log has none at the point a
// request is sent to the service.
func (l *Log) OpenCalls() []string {
	resolved := make(map[string]bool)
	for _, it := range l.items {
		if it.Kind == KindToolResult {
			resolved[it.CallID] = true
		}
	}
	var open []string
	for _, it := range l.items {
		if it.Kind == KindToolCall && !resolved[it.CallID] {
			open = append(open, it.CallID)
		}
	}
	return open
}

// Validate checks the call/result pairing invariants: every result must
// answer a preceding call, and no call may be answered twice.
func (l *Log) Validate() error {
	pending := make(map[string]bool)
	answered := make(map[string]bool)
	for i, it := range l.items {
		switch it.Kind {
		case KindToolCall:
			if it.CallID == "" {
				return fmt.Errorf("item %d: tool call without call_id", i)
			}
			if pending[it.CallID] || answered[it.CallID] {
				return fmt.Errorf("item %d: duplicate tool call %q", i, it.CallID)
			}
			pending[it.CallID] = true
		case KindToolResult:
			if answered[it.CallID] {
				return fmt.Errorf("item %d: duplicate tool result %q", i, it.CallID)
			}
			if !pending[it.CallID] {
				return fmt.Errorf("item %d: tool result %q has no preceding call", i, it.CallID)
			}
			pending[it.CallID] = false
			answered[it.CallID] = true
		}
	}
	return nil
}
