package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rishimeka/astro/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]domain.RunRecord
	nodes map[string]map[string]domain.NodeRecord
}

// NewStore creates a new in-memory run store.
func NewStore() *Store {
	return &Store{
		runs:  make(map[string]domain.RunRecord),
		nodes: make(map[string]map[string]domain.NodeRecord),
	}
}

// SaveRun persists the run summary in memory.
func (s *Store) SaveRun(ctx context.Context, run domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// LoadRun retrieves a run summary.
func (s *Store) LoadRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return domain.RunRecord{}, domain.ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns run summaries, most recently updated first.
func (s *Store) ListRuns(ctx context.Context) ([]domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]domain.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].UpdatedAt.Equal(runs[j].UpdatedAt) {
			return runs[i].UpdatedAt.After(runs[j].UpdatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

// SaveNodeRecord persists one node outcome, overwriting any previous record
// for the same node.
func (s *Store) SaveNodeRecord(ctx context.Context, rec domain.NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byNode, ok := s.nodes[rec.RunID]
	if !ok {
		byNode = make(map[string]domain.NodeRecord)
		s.nodes[rec.RunID] = byNode
	}
	byNode[rec.NodeID] = rec
	return nil
}

// LoadNodeRecords retrieves a run's node records in node id order.
func (s *Store) LoadNodeRecords(ctx context.Context, runID string) ([]domain.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byNode := s.nodes[runID]
	records := make([]domain.NodeRecord, 0, len(byNode))
	for _, rec := range byNode {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].NodeID < records[j].NodeID })
	return records, nil
}

// DeleteRun removes the run summary and its node records.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	delete(s.nodes, runID)
	return nil
}
