package runstate

import "github.com/rishimeka/astro/pkg/domain"

// Seed builds the execution state for a run opened from persistence, with no
// live stream attached yet. Node states are constructed once from the
// persisted per-node records.
func Seed(run domain.RunRecord, nodes []domain.NodeRecord) domain.ExecutionState {
	state := domain.NewExecutionState(run.ID)
	state.Status = run.Status
	state.FinalOutput = run.FinalOutput
	state.Error = run.Error

	for _, rec := range nodes {
		state.NodeStates[rec.NodeID] = domain.NodeExecutionState{
			NodeID:  rec.NodeID,
			StarID:  rec.StarID,
			Status:  rec.Status,
			Output:  rec.Output,
			Error:   rec.Error,
			Attempt: rec.Attempt,
		}
	}

	return state
}

// Overlay folds live events on top of a seeded state. Live events always win
// over the persisted snapshot for any field they touch, per node; fields no
// event touches keep their seeded values.
func Overlay(state domain.ExecutionState, events []domain.RunEvent) domain.ExecutionState {
	return Fold(state, events)
}
