package graph

import (
	"testing"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

func TestNewDirected(t *testing.T) {
	trace := exampleTrace()
	d := NewDirected(BuildFromTrace(&trace))

	if d.Len() != 4 {
		t.Fatalf("Expected 4 nodes, got %d", d.Len())
	}

	a, ok := d.NodeID("A")
	if !ok || a != 0 {
		t.Errorf("Expected A to map to 0, got %d (found=%v)", a, ok)
	}
	dID, _ := d.NodeID("D")
	if !d.Graph().HasEdgeFromTo(a, dID) {
		t.Error("Expected edge A->D in gonum view")
	}
	if d.Graph().HasEdgeFromTo(dID, a) {
		t.Error("Unexpected reverse edge D->A")
	}

	if id, ok := d.SpanID(dID); !ok || id != "D" {
		t.Errorf("Expected SpanID to return D, got %q", id)
	}
	if _, ok := d.SpanID(99); ok {
		t.Error("Expected unknown gonum ID to be rejected")
	}
}

func TestNewDirected_SkipsSelfLoops(t *testing.T) {
	g := model.NewDependencyGraph()
	g.AddNode(&model.GraphNode{ID: "A"})
	mustEdge(t, g, "A", "A", 1)

	d := NewDirected(g)
	if d.Graph().HasEdgeFromTo(0, 0) {
		t.Error("Expected self-loop to be skipped")
	}
}
