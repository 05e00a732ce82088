package dsl

import (
	"errors"
	"testing"

	"github.com/rishimeka/astro/pkg/domain"
)

func TestBuilderReviewLoop(t *testing.T) {
	// 1. Build a draft/review loop with a gated deploy step.
	b := New("review-loop", "Review loop").Describe("draft until approved")

	b.Add("draft").
		Worker("Draft an answer for: {{input}}").
		Named("Drafter").
		Go("review")

	b.Add("review").
		Eval("Is this complete? {{input}}").
		Continue("deploy").
		Loop("draft")

	b.Add("deploy").
		Execution("http").
		Config("method", "POST").
		RequiresConfirmation().
		Go(EndID)

	b.Entry("draft")

	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	// 2. Anchors sit first and last, added nodes keep their order.
	if c.Nodes[0].Kind != domain.NodeKindStart {
		t.Errorf("expected start anchor first, got %s", c.Nodes[0].ID)
	}
	if last := c.Nodes[len(c.Nodes)-1]; last.Kind != domain.NodeKindEnd {
		t.Errorf("expected end anchor last, got %s", last.ID)
	}
	if len(c.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(c.Nodes))
	}
	if c.Nodes[1].ID != "draft" || c.Nodes[2].ID != "review" || c.Nodes[3].ID != "deploy" {
		t.Errorf("nodes out of order: %+v", c.Nodes)
	}

	// 3. Stars mirror their nodes.
	draft, ok := c.StarByID("draft")
	if !ok {
		t.Fatal("star draft missing")
	}
	if draft.Type != domain.StarWorker {
		t.Errorf("expected worker star, got %s", draft.Type)
	}
	if draft.Name != "Drafter" {
		t.Errorf("expected name Drafter, got %s", draft.Name)
	}

	deploy, ok := c.StarByID("deploy")
	if !ok {
		t.Fatal("star deploy missing")
	}
	if deploy.Probe != "http" {
		t.Errorf("expected probe http, got %s", deploy.Probe)
	}
	if deploy.Config["method"] != "POST" {
		t.Errorf("expected config method POST, got %v", deploy.Config["method"])
	}

	node, ok := c.NodeByID("deploy")
	if !ok {
		t.Fatal("node deploy missing")
	}
	if !node.RequiresConfirmation {
		t.Error("expected deploy to require confirmation")
	}
	if node.StarType != domain.StarExecution {
		t.Errorf("expected mirrored star type, got %s", node.StarType)
	}

	// 4. Eval branches carry their tags.
	var tags []domain.EdgeTag
	for _, e := range c.OutgoingEdges("review") {
		tags = append(tags, e.Tag)
	}
	if len(tags) != 2 || tags[0] != domain.EdgeTagContinue || tags[1] != domain.EdgeTagLoop {
		t.Errorf("unexpected review branches: %v", tags)
	}
}

func TestBuilderAddIsIdempotent(t *testing.T) {
	b := New("idem", "Idempotent")
	first := b.Add("step")
	second := b.Add("step")
	if first != second {
		t.Error("Add should return the existing builder for a known id")
	}
}

func TestBuilderRejectsBrokenGraphs(t *testing.T) {
	// No Entry edge: the only star is unreachable.
	b := New("broken", "Broken")
	b.Add("orphan").Worker("x").Go(EndID)

	if _, err := b.Build(); !errors.Is(err, domain.ErrInvalidConstellation) {
		t.Fatalf("expected ErrInvalidConstellation, got %v", err)
	}
}

func TestBuilderRejectsUntypedNodes(t *testing.T) {
	b := New("untyped", "Untyped")
	b.Add("mystery").Go(EndID)
	b.Entry("mystery")

	if _, err := b.Build(); !errors.Is(err, domain.ErrInvalidConstellation) {
		t.Fatalf("expected ErrInvalidConstellation, got %v", err)
	}
}
