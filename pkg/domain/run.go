package domain

import "time"

// RunStatus defines the lifecycle state of one run.
type RunStatus string

const (
	RunIdle                 RunStatus = "idle"
	RunRunning              RunStatus = "running"
	RunAwaitingConfirmation RunStatus = "awaiting_confirmation"
	RunCompleted            RunStatus = "completed"
	RunFailed               RunStatus = "failed"
	RunCancelled            RunStatus = "cancelled"
)

// Terminal reports whether the status is absorbing: once a run reaches a
// terminal status its state no longer changes.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// NodeStatus defines the lifecycle state of one node within a run.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodeRetrying  NodeStatus = "retrying"
)

// NodeExecutionState is the per-node slice of a run's state. It is created
// lazily the first time an event references the node id and overwritten
// field by field as later events arrive; it is never deleted within a run.
type NodeExecutionState struct {
	NodeID string `json:"node_id"`
	StarID string `json:"star_id,omitempty"`

	Status   NodeStatus `json:"status"`
	Progress string     `json:"progress,omitempty"`
	Output   string     `json:"output,omitempty"`
	Error    string     `json:"error,omitempty"`

	// Retry metadata, set by node_retrying events.
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Confirmation identifies the node a paused run is waiting on and the prompt
// shown to the decision maker.
type Confirmation struct {
	NodeID string `json:"node_id"`
	Prompt string `json:"prompt"`
}

// ExecutionState is the snapshot of one run as seen by a stream consumer.
// It is created when a run starts (or a historical run is opened), mutated
// only by event folding, and immutable once Status is terminal.
type ExecutionState struct {
	RunID  string    `json:"run_id"`
	Status RunStatus `json:"status"`

	NodeStates map[string]NodeExecutionState `json:"node_states"`

	// CurrentNodeID is the node executing right now, empty between nodes
	// and after termination.
	CurrentNodeID string `json:"current_node_id,omitempty"`

	// AwaitingConfirmation is non-nil exactly while Status is
	// awaiting_confirmation.
	AwaitingConfirmation *Confirmation `json:"awaiting_confirmation,omitempty"`

	FinalOutput string `json:"final_output,omitempty"`
	Error       string `json:"error,omitempty"`

	// Progress is the ordered log of node progress messages.
	Progress []string `json:"progress,omitempty"`
}

// NewExecutionState creates the idle pre-start state for a run.
func NewExecutionState(runID string) ExecutionState {
	return ExecutionState{
		RunID:      runID,
		Status:     RunIdle,
		NodeStates: make(map[string]NodeExecutionState),
	}
}

// ConfirmationDecision is the proceed/cancel answer for a paused node.
// AdditionalContext travels only with a proceed.
type ConfirmationDecision struct {
	Proceed           bool   `json:"proceed"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// ConfirmationAck acknowledges receipt of a confirmation decision. Status is
// a hint; the authoritative transition arrives on the event stream.
type ConfirmationAck struct {
	RunID   string    `json:"run_id"`
	Status  RunStatus `json:"status"`
	Message string    `json:"message,omitempty"`
}

// RunRecord is the persisted summary of a run.
type RunRecord struct {
	ID              string    `json:"id"`
	ConstellationID string    `json:"constellation_id"`
	Status          RunStatus `json:"status"`
	Input           string    `json:"input,omitempty"`
	FinalOutput     string    `json:"final_output,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NodeRecord is the persisted outcome of one node within a run. Historical
// viewers seed ExecutionState.NodeStates from these records.
type NodeRecord struct {
	RunID  string     `json:"run_id"`
	NodeID string     `json:"node_id"`
	StarID string     `json:"star_id,omitempty"`
	Status NodeStatus `json:"status"`
	Output string     `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`

	Attempt    int       `json:"attempt,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
