package domain

import (
	"strings"
	"testing"
)

func TestDecodeRunEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		data    string
		want    RunEvent
		wantErr string
	}{
		{
			name:  "node started",
			event: "node_started",
			data:  `{"node_id":"n1","star_id":"s1"}`,
			want:  RunEvent{Type: EventNodeStarted, NodeID: "n1", StarID: "s1"},
		},
		{
			name:  "node retrying carries attempt metadata",
			event: "node_retrying",
			data:  `{"node_id":"n1","attempt":2,"max_attempts":3,"last_error":"timeout"}`,
			want:  RunEvent{Type: EventNodeRetrying, NodeID: "n1", Attempt: 2, MaxAttempts: 3, LastError: "timeout"},
		},
		{
			name:  "unknown event names still decode",
			event: "ping",
			data:  `{}`,
			want:  RunEvent{Type: "ping"},
		},
		{
			name:    "malformed payload",
			event:   "node_completed",
			data:    `{"node_id":`,
			wantErr: "decode node_completed payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRunEvent(tt.event, []byte(tt.data))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestKnownEvent(t *testing.T) {
	for _, ev := range []RunEventType{
		EventRunStarted, EventNodeStarted, EventNodeProgress, EventNodeCompleted,
		EventNodeFailed, EventNodeRetrying, EventAwaitingConfirmation,
		EventRunResumed, EventRunCompleted, EventRunFailed,
	} {
		if !KnownEvent(ev) {
			t.Errorf("expected %q to be known", ev)
		}
	}
	if KnownEvent("ping") {
		t.Error("ping should not be part of the union")
	}
}

func TestRunStatusTerminal(t *testing.T) {
	terminal := []RunStatus{RunCompleted, RunFailed, RunCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	for _, s := range []RunStatus{RunIdle, RunRunning, RunAwaitingConfirmation} {
		if s.Terminal() {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}
