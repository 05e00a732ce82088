package graph_test

import (
	"strings"
	"testing"

	"github.com/rishimeka/astro/internal/presentation/graph"
	"github.com/rishimeka/astro/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		c        domain.Constellation
		overlay  *graph.Overlay
		contains []string
	}{
		{
			name: "anchor shapes",
			c: domain.Constellation{
				Nodes: []domain.Node{
					{ID: "start", Kind: domain.NodeKindStart},
					{ID: "end", Kind: domain.NodeKindEnd},
				},
			},
			contains: []string{
				"start((\"start\"))",
				"end((\"end\"))",
			},
		},
		{
			name: "star shapes",
			c: domain.Constellation{
				Nodes: []domain.Node{
					{ID: "n-eval", Kind: domain.NodeKindStar, StarType: domain.StarEval, Label: "Good enough?"},
					{ID: "n-exec", Kind: domain.NodeKindStar, StarType: domain.StarExecution},
					{ID: "n-work", Kind: domain.NodeKindStar, StarType: domain.StarWorker},
				},
			},
			contains: []string{
				"n_eval{\"Good enough?\"}",
				"n_exec[[\"n-exec\"]]",
				"n_work[\"n-work\"]",
			},
		},
		{
			name: "eval branch labels",
			c: domain.Constellation{
				Nodes: []domain.Node{
					{ID: "n-eval", Kind: domain.NodeKindStar, StarType: domain.StarEval},
					{ID: "n-draft", Kind: domain.NodeKindStar, StarType: domain.StarWorker},
					{ID: "end", Kind: domain.NodeKindEnd},
				},
				Edges: []domain.Edge{
					{ID: "e1", From: "n-eval", To: "end", Tag: domain.EdgeTagContinue},
					{ID: "e2", From: "n-eval", To: "n-draft", Tag: domain.EdgeTagLoop},
				},
			},
			contains: []string{
				"n_eval -- \"continue\" --> end",
				"n_eval -. \"loop\" .-> n_draft",
			},
		},
		{
			name: "id sanitization",
			c: domain.Constellation{
				Nodes: []domain.Node{
					{ID: "step one.two", Kind: domain.NodeKindStar, StarType: domain.StarWorker},
				},
			},
			contains: []string{
				"step_one_two[\"step one.two\"]",
			},
		},
		{
			name: "overlay classes",
			c: domain.Constellation{
				Nodes: []domain.Node{
					{ID: "n-a", Kind: domain.NodeKindStar, StarType: domain.StarWorker},
					{ID: "n-b", Kind: domain.NodeKindStar, StarType: domain.StarWorker},
				},
			},
			overlay: &graph.Overlay{
				Completed: []string{"n-a", "n-a"},
				Failed:    []string{"n-b"},
				Current:   "n-b",
			},
			contains: []string{
				"classDef completed",
				"class n_a completed;",
				"class n_b failed;",
				"class n_b current;",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := graph.GenerateMermaid(&tc.c, tc.overlay)
			for _, want := range tc.contains {
				if !strings.Contains(got, want) {
					t.Errorf("mermaid output missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestGenerateMermaidDeduplicatesOverlay(t *testing.T) {
	c := domain.Constellation{
		Nodes: []domain.Node{{ID: "n-a", Kind: domain.NodeKindStar, StarType: domain.StarWorker}},
	}
	got := graph.GenerateMermaid(&c, &graph.Overlay{Completed: []string{"n-a", "n-a"}})
	if strings.Count(got, "class n_a completed;") != 1 {
		t.Errorf("expected one completed class for n_a, got:\n%s", got)
	}
}

func TestFromState(t *testing.T) {
	st := domain.NewExecutionState("r1")
	st.NodeStates["n-done"] = domain.NodeExecutionState{NodeID: "n-done", Status: domain.NodeCompleted}
	st.NodeStates["n-bad"] = domain.NodeExecutionState{NodeID: "n-bad", Status: domain.NodeFailed}
	st.NodeStates["n-live"] = domain.NodeExecutionState{NodeID: "n-live", Status: domain.NodeRunning}
	st.CurrentNodeID = "n-live"

	o := graph.FromState(st)
	if len(o.Completed) != 1 || o.Completed[0] != "n-done" {
		t.Errorf("completed = %v, want [n-done]", o.Completed)
	}
	if len(o.Failed) != 1 || o.Failed[0] != "n-bad" {
		t.Errorf("failed = %v, want [n-bad]", o.Failed)
	}
	if o.Current != "n-live" {
		t.Errorf("current = %q, want n-live", o.Current)
	}
}
