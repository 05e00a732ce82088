package domain

// NodeKind separates the two structural anchors of a constellation from the
// executable star nodes between them.
type NodeKind string

const (
	// NodeKindStart is the single entry anchor. It has no incoming edges.
	NodeKindStart NodeKind = "start"
	// NodeKindEnd is the single exit anchor. It has no outgoing edges.
	NodeKindEnd NodeKind = "end"
	// NodeKindStar is an executable unit typed by StarType.
	NodeKindStar NodeKind = "star"
)

// EdgeTag marks the branch an edge represents when its source is an eval
// star. Edges from any other source carry no tag.
type EdgeTag string

const (
	// EdgeTagNone is the default for edges that do not branch.
	EdgeTagNone EdgeTag = ""
	// EdgeTagContinue is the forward branch out of an eval star.
	EdgeTagContinue EdgeTag = "continue"
	// EdgeTagLoop is the backward branch out of an eval star.
	EdgeTagLoop EdgeTag = "loop"
)

// Node represents one point in the constellation graph.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Label is the display name chosen in the editor.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// StarID binds a star-kind node to its Star definition.
	StarID string `json:"star_id,omitempty" yaml:"star_id,omitempty"`

	// StarType mirrors the bound star's type so structural validation does
	// not need the star catalog.
	StarType StarType `json:"star_type,omitempty" yaml:"star_type,omitempty"`

	// RequiresConfirmation pauses the run before this node executes, until
	// an external proceed/cancel decision arrives.
	RequiresConfirmation bool `json:"requires_confirmation,omitempty" yaml:"requires_confirmation,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID   string  `json:"id" yaml:"id"`
	From string  `json:"from" yaml:"from"`
	To   string  `json:"to" yaml:"to"`
	Tag  EdgeTag `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Constellation is a directed workflow graph of stars between a Start and an
// End node. Structure is checked by the validator, not enforced here; the
// editor mutates constellations freely and persists them only once no
// error-severity finding remains.
type Constellation struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Stars []Star `json:"stars,omitempty" yaml:"stars,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// StarByID looks up a star definition. The second result is false when the
// id is not part of this constellation.
func (c *Constellation) StarByID(id string) (Star, bool) {
	for _, s := range c.Stars {
		if s.ID == id {
			return s, true
		}
	}
	return Star{}, false
}

// NodeByID looks up a node. The second result is false when the id is not
// part of this constellation.
func (c *Constellation) NodeByID(id string) (Node, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// StartNode returns the start anchor, or false if the graph has none (an
// invalid but representable shape).
func (c *Constellation) StartNode() (Node, bool) {
	for _, n := range c.Nodes {
		if n.Kind == NodeKindStart {
			return n, true
		}
	}
	return Node{}, false
}

// OutgoingEdges returns the edges sourced at the given node, in declaration
// order.
func (c *Constellation) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range c.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}
