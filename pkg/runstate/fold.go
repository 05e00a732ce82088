// Package runstate realizes the run lifecycle as a pure fold over the
// execution event stream.
//
// The state machine is
//
//	idle → running ⇄ awaiting_confirmation → {completed | failed | cancelled}
//
// where the three terminal states are absorbing: once reached, every further
// event leaves the state untouched. running and awaiting_confirmation may
// alternate once per confirmation-gated node encountered, and the only exits
// from awaiting_confirmation are an explicit confirm decision or the paired
// run_resumed event.
//
// Keeping the fold pure (no transport, no clock, no shared mutation) lets
// the live stream client and the historical viewer share one transition
// table and makes the machine testable from plain event slices.
package runstate

import "github.com/rishimeka/astro/pkg/domain"

// Next folds one event into the state and returns the successor state. The
// input is never mutated. Event types outside the closed union leave the
// state unchanged, as does any event arriving after a terminal status.
//
// Each event type touches a fixed subset of fields; everything else is
// carried over as-is:
//
//	run_started            status
//	node_started           nodeStates[id] (fresh entry), currentNodeId
//	node_progress          nodeStates[id].progress, progress log
//	node_completed         nodeStates[id].{status,output}, currentNodeId
//	node_failed            nodeStates[id].{status,error}, currentNodeId
//	node_retrying          nodeStates[id].{status,attempt,maxAttempts,lastError}
//	awaiting_confirmation  status, awaitingConfirmation
//	run_resumed            status, awaitingConfirmation
//	run_completed          status, finalOutput, currentNodeId
//	run_failed             status, error, currentNodeId
func Next(state domain.ExecutionState, ev domain.RunEvent) domain.ExecutionState {
	if state.Status.Terminal() {
		return state
	}

	switch ev.Type {
	case domain.EventRunStarted:
		state.Status = domain.RunRunning

	case domain.EventNodeStarted:
		state.NodeStates = cloneNodes(state.NodeStates)
		state.NodeStates[ev.NodeID] = domain.NodeExecutionState{
			NodeID: ev.NodeID,
			StarID: ev.StarID,
			Status: domain.NodeRunning,
		}
		state.CurrentNodeID = ev.NodeID

	case domain.EventNodeProgress:
		state.NodeStates = cloneNodes(state.NodeStates)
		ns := nodeEntry(state.NodeStates, ev.NodeID)
		ns.Progress = ev.Message
		state.NodeStates[ev.NodeID] = ns
		state.Progress = appendLog(state.Progress, ev.Message)

	case domain.EventNodeCompleted:
		state.NodeStates = cloneNodes(state.NodeStates)
		ns := nodeEntry(state.NodeStates, ev.NodeID)
		ns.Status = domain.NodeCompleted
		ns.Output = ev.Output
		state.NodeStates[ev.NodeID] = ns
		if state.CurrentNodeID == ev.NodeID {
			state.CurrentNodeID = ""
		}

	case domain.EventNodeFailed:
		state.NodeStates = cloneNodes(state.NodeStates)
		ns := nodeEntry(state.NodeStates, ev.NodeID)
		ns.Status = domain.NodeFailed
		ns.Error = ev.Error
		state.NodeStates[ev.NodeID] = ns
		if state.CurrentNodeID == ev.NodeID {
			state.CurrentNodeID = ""
		}

	case domain.EventNodeRetrying:
		state.NodeStates = cloneNodes(state.NodeStates)
		ns := nodeEntry(state.NodeStates, ev.NodeID)
		ns.Status = domain.NodeRetrying
		ns.Attempt = ev.Attempt
		ns.MaxAttempts = ev.MaxAttempts
		ns.LastError = ev.LastError
		state.NodeStates[ev.NodeID] = ns

	case domain.EventAwaitingConfirmation:
		state.Status = domain.RunAwaitingConfirmation
		state.AwaitingConfirmation = &domain.Confirmation{NodeID: ev.NodeID, Prompt: ev.Prompt}

	case domain.EventRunResumed:
		state.Status = domain.RunRunning
		state.AwaitingConfirmation = nil

	case domain.EventRunCompleted:
		state.Status = domain.RunCompleted
		state.FinalOutput = ev.Output
		state.CurrentNodeID = ""

	case domain.EventRunFailed:
		state.Status = domain.RunFailed
		state.Error = ev.Error
		state.CurrentNodeID = ""
	}

	return state
}

// Fold applies a sequence of events in order, starting from state.
func Fold(state domain.ExecutionState, events []domain.RunEvent) domain.ExecutionState {
	for _, ev := range events {
		state = Next(state, ev)
	}
	return state
}

// nodeEntry returns the existing entry for id, or a fresh pending one the
// first time an event references the node.
func nodeEntry(nodes map[string]domain.NodeExecutionState, id string) domain.NodeExecutionState {
	if ns, ok := nodes[id]; ok {
		return ns
	}
	return domain.NodeExecutionState{NodeID: id, Status: domain.NodePending}
}

func cloneNodes(nodes map[string]domain.NodeExecutionState) map[string]domain.NodeExecutionState {
	out := make(map[string]domain.NodeExecutionState, len(nodes))
	for k, v := range nodes {
		out[k] = v
	}
	return out
}

func appendLog(log []string, msg string) []string {
	out := make([]string, len(log), len(log)+1)
	copy(out, log)
	return append(out, msg)
}
