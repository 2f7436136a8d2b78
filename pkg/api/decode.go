package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeEvents reads a run history from r. It accepts either a bare JSON
// array of history items or an object with a "history" array, the shape
// returned by the run details query.
//
// Unknown event kinds are kept; filtering them is the builder's job.
func DecodeEvents(r io.Reader) ([]RawEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '{' {
		var wrapped struct {
			History []RawEvent `json:"history"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		return wrapped.History, nil
	}

	var events []RawEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return events, nil
}

// EncodeEvents writes events to w as an indented JSON array.
func EncodeEvents(w io.Writer, events []RawEvent) error {
	if events == nil {
		events = []RawEvent{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}
