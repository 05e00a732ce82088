package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rishimeka/astro/pkg/domain"
)

// ConstellationStore implements ports.ConstellationStore in memory.
// Safe for concurrent use.
type ConstellationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Constellation
}

// NewConstellationStore creates a new in-memory constellation store.
func NewConstellationStore() *ConstellationStore {
	return &ConstellationStore{
		data: make(map[string]*domain.Constellation),
	}
}

// Save persists a copy of the constellation so the caller can't mutate the
// stored version by pointer.
func (s *ConstellationStore) Save(ctx context.Context, c *domain.Constellation) error {
	copied := cloneConstellation(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c.ID] = copied
	return nil
}

// Load retrieves a constellation by ID, again as a copy.
func (s *ConstellationStore) Load(ctx context.Context, id string) (*domain.Constellation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[id]
	if !ok {
		return nil, domain.ErrConstellationNotFound
	}
	return cloneConstellation(c), nil
}

// List returns all stored constellations ordered by ID.
func (s *ConstellationStore) List(ctx context.Context) ([]domain.Constellation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Constellation, 0, len(s.data))
	for _, c := range s.data {
		out = append(out, *cloneConstellation(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes a constellation.
func (s *ConstellationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func cloneConstellation(c *domain.Constellation) *domain.Constellation {
	copied := *c
	copied.Stars = make([]domain.Star, len(c.Stars))
	for i, star := range c.Stars {
		copied.Stars[i] = star
		if star.Config != nil {
			cfg := make(map[string]any, len(star.Config))
			for k, v := range star.Config {
				cfg[k] = v
			}
			copied.Stars[i].Config = cfg
		}
	}
	copied.Nodes = append([]domain.Node(nil), c.Nodes...)
	copied.Edges = append([]domain.Edge(nil), c.Edges...)
	return &copied
}
