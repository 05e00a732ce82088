package ports

import (
	"context"

	"github.com/rishimeka/astro/pkg/domain"
)

// RunStore defines the interface for persisting runs. The run summary and
// the per-node records it accumulates are the seed for historical viewers,
// so implementations must keep both consistent.
type RunStore interface {
	// SaveRun persists the run summary, overwriting any previous version.
	SaveRun(ctx context.Context, run domain.RunRecord) error

	// LoadRun retrieves a run summary.
	// Returns domain.ErrRunNotFound if the run does not exist.
	LoadRun(ctx context.Context, runID string) (domain.RunRecord, error)

	// ListRuns returns run summaries, most recent first.
	ListRuns(ctx context.Context) ([]domain.RunRecord, error)

	// SaveNodeRecord persists the outcome of one node within a run,
	// overwriting any previous record for the same node.
	SaveNodeRecord(ctx context.Context, rec domain.NodeRecord) error

	// LoadNodeRecords retrieves every node record of a run, in node id
	// order. A run with no records yields an empty slice, not an error.
	LoadNodeRecords(ctx context.Context, runID string) ([]domain.NodeRecord, error)

	// DeleteRun removes the run summary and its node records.
	DeleteRun(ctx context.Context, runID string) error
}

// ConstellationStore defines the interface for persisting constellation
// graphs. Callers gate Save behind the validator; stores persist whatever
// they are handed.
type ConstellationStore interface {
	// Save persists a constellation, overwriting any previous version.
	Save(ctx context.Context, c *domain.Constellation) error

	// Load retrieves a constellation by ID.
	// Returns domain.ErrConstellationNotFound if it does not exist.
	Load(ctx context.Context, id string) (*domain.Constellation, error)

	// List returns all stored constellations.
	List(ctx context.Context) ([]domain.Constellation, error)

	// Delete removes a constellation.
	Delete(ctx context.Context, id string) error
}
