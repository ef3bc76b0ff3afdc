package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LoadTranscript reads a persisted transcript from path. A missing file is
// not an error: it returns an empty log so a fresh session can start.
func LoadTranscript(path string) (*Log, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewLog(), nil
		}
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	l := NewLog(items...)
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("transcript %s: %w", path, err)
	}
	return l, nil
}

// SaveTranscript writes the full typed transcript to path.
func SaveTranscript(path string, l *Log) error {
	b, err := json.MarshalIndent(l.Items(), "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
