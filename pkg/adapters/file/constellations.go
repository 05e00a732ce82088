// Package file loads constellation definitions from YAML or JSON files and
// provides a directory-backed constellation store for deployments that need
// definitions to outlive the process.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rishimeka/astro/pkg/domain"
)

// Load reads a single constellation definition from path. The format is
// chosen by extension: .json parses as JSON, everything else as YAML.
//
// Hand-written files may omit fields the wire format requires. Load fills
// them in: a missing constellation id defaults to the file name, a node
// bound to a star defaults to the star kind, and an empty star_type mirror
// is copied from the bound star definition.
func Load(path string) (*domain.Constellation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read constellation file: %w", err)
	}

	var c domain.Constellation
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &c)
	default:
		err = yaml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	normalize(&c, path)
	return &c, nil
}

// LoadDir loads every .yaml, .yml and .json file directly under dir. Two
// files defining the same constellation id is an error.
func LoadDir(dir string) ([]*domain.Constellation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list constellation directory: %w", err)
	}

	seen := make(map[string]string)
	var out []*domain.Constellation
	for _, entry := range entries {
		if entry.IsDir() || !definitionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		c, err := Load(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[c.ID]; ok {
			return nil, fmt.Errorf("constellation %q is defined in both %s and %s", c.ID, prev, entry.Name())
		}
		seen[c.ID] = entry.Name()
		out = append(out, c)
	}
	return out, nil
}

func definitionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func normalize(c *domain.Constellation, path string) {
	if c.ID == "" {
		base := filepath.Base(path)
		c.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if c.Name == "" {
		c.Name = c.ID
	}

	for i, n := range c.Nodes {
		if n.Kind == "" && n.StarID != "" {
			c.Nodes[i].Kind = domain.NodeKindStar
		}
		if n.StarType == "" && n.StarID != "" {
			if star, ok := c.StarByID(n.StarID); ok {
				c.Nodes[i].StarType = star.Type
			}
		}
	}
}

// ConstellationStore implements ports.ConstellationStore on a directory of
// YAML files, one per constellation. Files added by hand are picked up on
// the next Load or List.
type ConstellationStore struct {
	dir string
}

// NewConstellationStore creates a store rooted at dir. If dir is empty it
// defaults to ".astro/constellations".
func NewConstellationStore(dir string) *ConstellationStore {
	if dir == "" {
		dir = filepath.Join(".astro", "constellations")
	}
	return &ConstellationStore{dir: dir}
}

// Save persists the constellation as <id>.yaml, overwriting any previous
// version.
func (s *ConstellationStore) Save(ctx context.Context, c *domain.Constellation) error {
	if c.ID == "" {
		return fmt.Errorf("constellation id cannot be empty")
	}
	if strings.ContainsAny(c.ID, `/\`) {
		return fmt.Errorf("constellation id must not contain path separators")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure constellation directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal constellation: %w", err)
	}
	if err := os.WriteFile(s.path(c.ID, ".yaml"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write constellation file: %w", err)
	}
	return nil
}

// Load retrieves a constellation by id, trying the .yaml, .yml and .json
// extensions in that order.
func (s *ConstellationStore) Load(ctx context.Context, id string) (*domain.Constellation, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, domain.ErrConstellationNotFound
	}

	for _, ext := range []string{".yaml", ".yml", ".json"} {
		c, err := Load(s.path(id, ext))
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, domain.ErrConstellationNotFound
}

// List returns every constellation defined in the directory, in file name
// order.
func (s *ConstellationStore) List(ctx context.Context) ([]domain.Constellation, error) {
	loaded, err := LoadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.Constellation{}, nil
		}
		return nil, err
	}

	out := make([]domain.Constellation, 0, len(loaded))
	for _, c := range loaded {
		out = append(out, *c)
	}
	return out, nil
}

// Delete removes the constellation's file. Deleting an absent constellation
// is not an error.
func (s *ConstellationStore) Delete(ctx context.Context, id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil
	}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		if err := os.Remove(s.path(id, ext)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete constellation file: %w", err)
		}
	}
	return nil
}

func (s *ConstellationStore) path(id, ext string) string {
	return filepath.Join(s.dir, id+ext)
}
