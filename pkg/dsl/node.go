package dsl

import "github.com/rishimeka/astro/pkg/domain"

// NodeBuilder provides a fluent API for configuring one node and the star
// behind it.
type NodeBuilder struct {
	node    domain.Node
	star    domain.Star
	builder *Builder
}

// Worker marks the star as a worker with the given directive template.
func (n *NodeBuilder) Worker(template string) *NodeBuilder {
	return n.typed(domain.StarWorker, template)
}

// Planning marks the star as a planner with the given directive template.
func (n *NodeBuilder) Planning(template string) *NodeBuilder {
	return n.typed(domain.StarPlanning, template)
}

// Eval marks the star as an eval. Its outgoing edges must carry the continue
// and loop tags, wired with Continue and Loop.
func (n *NodeBuilder) Eval(template string) *NodeBuilder {
	return n.typed(domain.StarEval, template)
}

// Synthesis marks the star as a synthesizer with the given directive template.
func (n *NodeBuilder) Synthesis(template string) *NodeBuilder {
	return n.typed(domain.StarSynthesis, template)
}

// Docex marks the star as a document extractor with the given directive
// template.
func (n *NodeBuilder) Docex(template string) *NodeBuilder {
	return n.typed(domain.StarDocex, template)
}

// Execution marks the star as an execution star calling the named probe.
func (n *NodeBuilder) Execution(probe string) *NodeBuilder {
	n.star.Type = domain.StarExecution
	n.star.Probe = probe
	return n
}

func (n *NodeBuilder) typed(t domain.StarType, template string) *NodeBuilder {
	n.star.Type = t
	n.star.Directive.Template = template
	return n
}

// Named sets the star's display name. It defaults to the node id.
func (n *NodeBuilder) Named(name string) *NodeBuilder {
	n.star.Name = name
	n.node.Label = name
	return n
}

// System sets the directive's system prompt.
func (n *NodeBuilder) System(prompt string) *NodeBuilder {
	n.star.Directive.System = prompt
	return n
}

// Config adds a star configuration entry, such as a retry override or a
// probe argument.
func (n *NodeBuilder) Config(key string, value any) *NodeBuilder {
	if n.star.Config == nil {
		n.star.Config = make(map[string]any)
	}
	n.star.Config[key] = value
	return n
}

// RequiresConfirmation pauses the run at this node until a decision arrives.
func (n *NodeBuilder) RequiresConfirmation() *NodeBuilder {
	n.node.RequiresConfirmation = true
	return n
}

// Go adds an untagged edge to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.builder.edge(n.node.ID, target, domain.EdgeTagNone)
	return n
}

// Continue adds the forward branch out of an eval star.
func (n *NodeBuilder) Continue(target string) *NodeBuilder {
	n.builder.edge(n.node.ID, target, domain.EdgeTagContinue)
	return n
}

// Loop adds the backward branch out of an eval star.
func (n *NodeBuilder) Loop(target string) *NodeBuilder {
	n.builder.edge(n.node.ID, target, domain.EdgeTagLoop)
	return n
}
