package dsl

import (
	"fmt"
	"strings"

	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/validator"
)

// anchor node ids every built constellation carries.
const (
	StartID = "start"
	EndID   = "end"
)

// Builder manages the constellation construction. Nodes keep their Add
// order and edges their wiring order, so the built graph is deterministic.
type Builder struct {
	id          string
	name        string
	description string

	nodes map[string]*NodeBuilder
	order []string
	edges []domain.Edge
}

// New creates a builder for a constellation. The start and end anchors are
// implicit; wire into them with Entry and Go(dsl.EndID).
func New(id, name string) *Builder {
	return &Builder{
		id:    id,
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Describe sets the constellation description.
func (b *Builder) Describe(text string) *Builder {
	b.description = text
	return b
}

// Add creates a new node in the graph. The node's star shares its id. If the
// node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID:     id,
			Kind:   domain.NodeKindStar,
			StarID: id,
		},
		star:    domain.Star{ID: id, Name: id},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Entry wires the start anchor to the target node.
func (b *Builder) Entry(target string) *Builder {
	b.edge(StartID, target, domain.EdgeTagNone)
	return b
}

func (b *Builder) edge(from, to string, tag domain.EdgeTag) {
	b.edges = append(b.edges, domain.Edge{
		ID:   fmt.Sprintf("e%d", len(b.edges)+1),
		From: from,
		To:   to,
		Tag:  tag,
	})
}

// Build compiles the graph into a constellation and validates it. Any
// error-severity finding fails the build.
func (b *Builder) Build() (*domain.Constellation, error) {
	c := &domain.Constellation{
		ID:          b.id,
		Name:        b.name,
		Description: b.description,
		Nodes:       []domain.Node{{ID: StartID, Kind: domain.NodeKindStart}},
		Edges:       b.edges,
	}
	var msgs []string
	for _, id := range b.order {
		nb := b.nodes[id]
		if nb.star.Type == "" {
			msgs = append(msgs, fmt.Sprintf("star %q has no type; call Worker, Eval or another typed method", id))
		}
		node := nb.node
		node.StarType = nb.star.Type
		c.Nodes = append(c.Nodes, node)
		c.Stars = append(c.Stars, nb.star)
	}
	c.Nodes = append(c.Nodes, domain.Node{ID: EndID, Kind: domain.NodeKindEnd})

	for _, f := range validator.ValidateConstellation(c) {
		if f.Severity == validator.SeverityError {
			msgs = append(msgs, f.Message)
		}
	}
	if len(msgs) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidConstellation, strings.Join(msgs, "; "))
	}
	return c, nil
}
