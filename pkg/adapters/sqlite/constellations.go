package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rishimeka/astro/pkg/domain"
)

// Save persists a constellation as a JSON document keyed by id.
func (s *Store) Save(ctx context.Context, c *domain.Constellation) error {
	definition, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal constellation %s: %w", c.ID, err)
	}

	query := `
		INSERT INTO constellations (id, name, definition)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			definition = excluded.definition
	`
	if _, err := s.db.ExecContext(ctx, query, c.ID, c.Name, string(definition)); err != nil {
		return fmt.Errorf("save constellation %s: %w", c.ID, err)
	}
	return nil
}

// Load retrieves a constellation by ID.
func (s *Store) Load(ctx context.Context, id string) (*domain.Constellation, error) {
	var definition string
	err := s.db.QueryRowContext(ctx, "SELECT definition FROM constellations WHERE id = ?", id).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConstellationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load constellation %s: %w", id, err)
	}

	var c domain.Constellation
	if err := json.Unmarshal([]byte(definition), &c); err != nil {
		return nil, fmt.Errorf("unmarshal constellation %s: %w", id, err)
	}
	return &c, nil
}

// List returns all stored constellations ordered by ID.
func (s *Store) List(ctx context.Context) ([]domain.Constellation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT definition FROM constellations ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list constellations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Constellation{}
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("list constellations: %w", err)
		}
		var c domain.Constellation
		if err := json.Unmarshal([]byte(definition), &c); err != nil {
			return nil, fmt.Errorf("list constellations: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list constellations: %w", err)
	}
	return out, nil
}

// Delete removes a constellation.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM constellations WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete constellation %s: %w", id, err)
	}
	return nil
}
