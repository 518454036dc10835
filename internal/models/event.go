package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Frame is one server-sent event as it arrived on the wire: the SSE event type (empty when the server
// sent no "event:" line) and the joined data lines.
type Frame struct {
	Type string
	Data string
}

// StreamEvent is the structured payload carried in a frame's data.
type StreamEvent struct {
	Event string `json:"event,omitempty"`
	Data  string `json:"data"`
}

const (
	// EventError marks an in-band error reported by the backend. The stream stays open.
	EventError = "error"
	// EventEnd is the only normal termination of a stream.
	EventEnd = "end"

	// sseDefaultType is the type browsers assign to frames without an "event:" line.
	sseDefaultType = "message"
)

var errNotObject = errors.New("stream event is not a JSON object")

// ParseStreamEvent decodes the data of a frame as a StreamEvent. Only JSON objects are accepted; any
// other payload, valid JSON or not, is reported as an error.
func ParseStreamEvent(data string) (StreamEvent, error) {
	if !strings.HasPrefix(strings.TrimSpace(data), "{") {
		return StreamEvent{}, errNotObject
	}

	var ev StreamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return StreamEvent{}, fmt.Errorf("failed to unmarshal stream event: %w", err)
	}
	return ev, nil
}

// Named reports whether the frame carries an explicit SSE event type.
func (f Frame) Named() bool {
	return f.Type != "" && f.Type != sseDefaultType
}
