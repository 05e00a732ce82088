package domain

import (
	"encoding/json"
	"fmt"
)

// RunEventType names one kind of frame on the execution event stream. The
// union is closed: consumers ignore any name not listed here.
type RunEventType string

const (
	EventRunStarted           RunEventType = "run_started"
	EventNodeStarted          RunEventType = "node_started"
	EventNodeProgress         RunEventType = "node_progress"
	EventNodeCompleted        RunEventType = "node_completed"
	EventNodeFailed           RunEventType = "node_failed"
	EventNodeRetrying         RunEventType = "node_retrying"
	EventAwaitingConfirmation RunEventType = "awaiting_confirmation"
	EventRunResumed           RunEventType = "run_resumed"
	EventRunCompleted         RunEventType = "run_completed"
	EventRunFailed            RunEventType = "run_failed"
)

// KnownEvent reports whether t is part of the closed event union.
func KnownEvent(t RunEventType) bool {
	switch t {
	case EventRunStarted, EventNodeStarted, EventNodeProgress, EventNodeCompleted,
		EventNodeFailed, EventNodeRetrying, EventAwaitingConfirmation,
		EventRunResumed, EventRunCompleted, EventRunFailed:
		return true
	}
	return false
}

// RunEvent is one decoded frame of the execution stream. Type travels on the
// frame's event line; the remaining fields form the JSON payload, each event
// type touching only its own subset:
//
//	run_started            run_id
//	node_started           node_id, star_id
//	node_progress          node_id, message
//	node_completed         node_id, output
//	node_failed            node_id, error
//	node_retrying          node_id, attempt, max_attempts, last_error
//	awaiting_confirmation  node_id, prompt
//	run_resumed            run_id
//	run_completed          output
//	run_failed             error
type RunEvent struct {
	Type RunEventType `json:"-"`

	RunID       string `json:"run_id,omitempty"`
	NodeID      string `json:"node_id,omitempty"`
	StarID      string `json:"star_id,omitempty"`
	Message     string `json:"message,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// DecodeRunEvent parses one frame's payload. A payload that is not valid
// JSON is a frame-level error; callers drop the frame and keep the stream.
func DecodeRunEvent(name string, data []byte) (RunEvent, error) {
	var ev RunEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RunEvent{}, fmt.Errorf("decode %s payload: %w", name, err)
	}
	ev.Type = RunEventType(name)
	return ev, nil
}

// Data serializes the event payload for the stream's data line.
func (e RunEvent) Data() ([]byte, error) {
	return json.Marshal(e)
}
