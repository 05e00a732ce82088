package http

import (
	"sort"

	"github.com/rishimeka/astro/pkg/domain"
)

// replayEvents reconstructs the event sequence of a run the hub no longer
// holds, from its persisted records. Progress frames and intermediate retry
// attempts are not persisted, so the reconstruction carries lifecycle frames
// only; it is enough for a viewer to seed the same terminal state a live
// subscriber would have folded.
func replayEvents(run domain.RunRecord, nodes []domain.NodeRecord) []domain.RunEvent {
	events := []domain.RunEvent{{Type: domain.EventRunStarted, RunID: run.ID}}

	ordered := make([]domain.NodeRecord, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})

	for _, n := range ordered {
		events = append(events, domain.RunEvent{
			Type:   domain.EventNodeStarted,
			RunID:  run.ID,
			NodeID: n.NodeID,
			StarID: n.StarID,
		})
		switch n.Status {
		case domain.NodeCompleted:
			events = append(events, domain.RunEvent{
				Type:   domain.EventNodeCompleted,
				RunID:  run.ID,
				NodeID: n.NodeID,
				Output: n.Output,
			})
		case domain.NodeFailed:
			events = append(events, domain.RunEvent{
				Type:   domain.EventNodeFailed,
				RunID:  run.ID,
				NodeID: n.NodeID,
				Error:  n.Error,
			})
		case domain.NodeRetrying:
			events = append(events, domain.RunEvent{
				Type:      domain.EventNodeRetrying,
				RunID:     run.ID,
				NodeID:    n.NodeID,
				Attempt:   n.Attempt,
				LastError: n.Error,
			})
		}
	}

	switch run.Status {
	case domain.RunCompleted:
		events = append(events, domain.RunEvent{
			Type:   domain.EventRunCompleted,
			RunID:  run.ID,
			Output: run.FinalOutput,
		})
	case domain.RunFailed, domain.RunCancelled:
		msg := run.Error
		if msg == "" && run.Status == domain.RunCancelled {
			msg = "run cancelled"
		}
		events = append(events, domain.RunEvent{
			Type:  domain.EventRunFailed,
			RunID: run.ID,
			Error: msg,
		})
	}
	return events
}
