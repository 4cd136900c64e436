package graph

import (
	"testing"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

func span(id, parent string, start, end float64) model.Span {
	return model.Span{
		TraceID:       "trace-1",
		SpanID:        id,
		ParentSpanID:  parent,
		OperationName: "op-" + id,
		StartTime:     start,
		EndTime:       model.Float(end),
		Duration:      model.Float(end - start),
		Status:        model.SpanStatusOK,
	}
}

// exampleTrace is A(0,100) with children B(0,40) -> C(0,40) and D(40,100)
func exampleTrace() model.Trace {
	return model.Trace{
		TraceID:   "trace-1",
		StartTime: 0,
		Duration:  model.Float(100),
		Spans: []model.Span{
			span("A", "", 0, 100),
			span("B", "A", 0, 40),
			span("C", "B", 0, 40),
			span("D", "A", 40, 100),
		},
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildFromTrace(t *testing.T) {
	trace := exampleTrace()
	g := BuildFromTrace(&trace)

	if len(g.Nodes) != 4 {
		t.Errorf("Expected 4 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Errorf("Expected 3 edges, got %d", len(g.Edges))
	}
	if !equalIDs(g.RootNodes, []string{"A"}) {
		t.Errorf("Expected roots [A], got %v", g.RootNodes)
	}
	if !equalIDs(g.LeafNodes, []string{"C", "D"}) {
		t.Errorf("Expected leaves [C D], got %v", g.LeafNodes)
	}
	if g.TotalDuration != 100 {
		t.Errorf("Expected total duration 100, got %v", g.TotalDuration)
	}

	edge, ok := g.Edge("A", "D")
	if !ok {
		t.Fatal("Edge A->D not found")
	}
	if edge.Type != model.EdgeCalls {
		t.Errorf("Expected calls edge, got %s", edge.Type)
	}
	if edge.Weight != 60 {
		t.Errorf("Expected A->D weight 60 (child duration), got %v", edge.Weight)
	}

	if err := g.Validate(); err != nil {
		t.Errorf("Built graph is inconsistent: %v", err)
	}
}

func TestBuildFromTrace_CriticalPathUsesSummedChildDurations(t *testing.T) {
	trace := exampleTrace()
	g := BuildFromTrace(&trace)

	// A->B->C weighs 40+40=80, A->D weighs 60
	if !equalIDs(g.CriticalPath, []string{"A", "B", "C"}) {
		t.Errorf("Expected critical path [A B C], got %v", g.CriticalPath)
	}
	if w := PathWeight(g, g.CriticalPath); w != 80 {
		t.Errorf("Expected critical path weight 80, got %v", w)
	}
}

func TestBuildFromTrace_NoSpans(t *testing.T) {
	trace := model.Trace{TraceID: "empty"}
	g := BuildFromTrace(&trace)

	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("Expected empty graph, got %d nodes and %d edges", len(g.Nodes), len(g.Edges))
	}
	if len(g.CriticalPath) != 0 {
		t.Errorf("Expected empty critical path, got %v", g.CriticalPath)
	}
	if g.TotalDuration != 0 {
		t.Errorf("Expected zero total duration, got %v", g.TotalDuration)
	}
}

func TestBuildFromTrace_UnresolvableParentBecomesRoot(t *testing.T) {
	trace := model.Trace{
		TraceID:  "trace-1",
		Duration: model.Float(50),
		Spans: []model.Span{
			span("A", "", 0, 50),
			span("B", "missing", 10, 20),
			span("C", "C", 20, 30),
		},
	}
	g := BuildFromTrace(&trace)

	if !equalIDs(g.RootNodes, []string{"A", "B", "C"}) {
		t.Errorf("Expected roots [A B C], got %v", g.RootNodes)
	}
	if len(g.Edges) != 0 {
		t.Errorf("Expected no edges, got %v", g.EdgeKeys())
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Graph is inconsistent: %v", err)
	}
}

func TestBuildFromTrace_DerivesMissingDuration(t *testing.T) {
	child := span("B", "A", 10, 35)
	child.Duration = nil
	trace := model.Trace{
		TraceID: "trace-1",
		Spans:   []model.Span{span("A", "", 0, 50), child},
	}
	g := BuildFromTrace(&trace)

	if d := g.Nodes["B"].Duration; d != 25 {
		t.Errorf("Expected derived duration 25, got %v", d)
	}
	if e, _ := g.Edge("A", "B"); e.Weight != 25 {
		t.Errorf("Expected edge weight 25, got %v", e.Weight)
	}
	// Trace itself reports no duration
	if g.TotalDuration != 0 {
		t.Errorf("Expected total duration 0, got %v", g.TotalDuration)
	}
}

func TestBuildFromTrace_DuplicateSpanKeepsFirst(t *testing.T) {
	trace := model.Trace{
		TraceID: "trace-1",
		Spans: []model.Span{
			span("A", "", 0, 50),
			span("B", "A", 0, 10),
			span("B", "A", 0, 30),
		},
	}
	g := BuildFromTrace(&trace)

	if len(g.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(g.Nodes))
	}
	if d := g.Nodes["B"].Duration; d != 10 {
		t.Errorf("Expected first B (duration 10) to win, got %v", d)
	}
	if e, _ := g.Edge("A", "B"); e.Weight != 10 {
		t.Errorf("Expected edge weight 10, got %v", e.Weight)
	}
}

func TestBuildFromMultipleTraces_SelfMerge(t *testing.T) {
	trace := exampleTrace()
	single := BuildFromTrace(&trace)
	merged := BuildFromMultipleTraces([]model.Trace{trace, trace})

	if !equalIDs(merged.NodeIDs(), single.NodeIDs()) {
		t.Errorf("Node sets differ: %v vs %v", merged.NodeIDs(), single.NodeIDs())
	}
	if !equalIDs(merged.EdgeKeys(), single.EdgeKeys()) {
		t.Errorf("Edge sets differ: %v vs %v", merged.EdgeKeys(), single.EdgeKeys())
	}
	for key, edge := range single.Edges {
		if merged.Edges[key].Weight != edge.Weight {
			t.Errorf("Edge %s weight changed: %v -> %v", key, edge.Weight, merged.Edges[key].Weight)
		}
	}
	for id, node := range single.Nodes {
		if merged.Nodes[id].Duration != node.Duration {
			t.Errorf("Node %s duration changed: %v -> %v", id, node.Duration, merged.Nodes[id].Duration)
		}
	}
	if !equalIDs(merged.CriticalPath, single.CriticalPath) {
		t.Errorf("Critical path differs: %v vs %v", merged.CriticalPath, single.CriticalPath)
	}
	if err := merged.Validate(); err != nil {
		t.Errorf("Merged graph is inconsistent: %v", err)
	}
}

func TestBuildFromMultipleTraces_MergesTimingAndWeights(t *testing.T) {
	first := model.Trace{
		TraceID:  "t1",
		Duration: model.Float(100),
		Spans:    []model.Span{span("A", "", 0, 100), span("B", "A", 10, 50)},
	}
	second := model.Trace{
		TraceID:  "t2",
		Duration: model.Float(115),
		Spans:    []model.Span{span("A", "", 5, 120), span("B", "A", 10, 30)},
	}
	second.Spans[1].Tags = map[string]model.TagValue{"db.type": model.StringTag("postgres")}

	g := BuildFromMultipleTraces([]model.Trace{first, second})

	a := g.Nodes["A"]
	if a.StartTime != 0 || a.EndTime != 120 {
		t.Errorf("Expected A widened to [0,120], got [%v,%v]", a.StartTime, a.EndTime)
	}
	if a.Duration != 120 {
		t.Errorf("Expected A duration recomputed to 120, got %v", a.Duration)
	}

	if e, _ := g.Edge("A", "B"); e.Weight != 30 {
		t.Errorf("Expected averaged weight 30, got %v", e.Weight)
	}
	if _, ok := g.Nodes["B"].Tag("db.type"); !ok {
		t.Error("Expected B metadata to carry tags from the second trace")
	}
	if g.Nodes["B"].Metadata.TraceID != "trace-1" {
		t.Errorf("Expected span-level trace ID, got %q", g.Nodes["B"].Metadata.TraceID)
	}

	// Worst single run, not the sum of both traces
	if g.TotalDuration != 115 {
		t.Errorf("Expected total duration 115 (max), got %v", g.TotalDuration)
	}
}

func TestBuildFromMultipleTraces_UnionsRootsAndParents(t *testing.T) {
	first := model.Trace{
		TraceID:  "t1",
		Duration: model.Float(10),
		Spans:    []model.Span{span("A", "", 0, 10), span("C", "A", 0, 5)},
	}
	second := model.Trace{
		TraceID:  "t2",
		Duration: model.Float(10),
		Spans:    []model.Span{span("B", "", 0, 10), span("C", "B", 0, 5)},
	}
	g := BuildFromMultipleTraces([]model.Trace{first, second})

	if !equalIDs(g.RootNodes, []string{"A", "B"}) {
		t.Errorf("Expected roots [A B], got %v", g.RootNodes)
	}
	if !equalIDs(g.Nodes["C"].Parents, []string{"A", "B"}) {
		t.Errorf("Expected C to have parents [A B], got %v", g.Nodes["C"].Parents)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Merged graph is inconsistent: %v", err)
	}
}

func TestBuildFromMultipleTraces_Empty(t *testing.T) {
	g := BuildFromMultipleTraces(nil)
	if len(g.Nodes) != 0 || len(g.CriticalPath) != 0 {
		t.Errorf("Expected empty graph, got %d nodes", len(g.Nodes))
	}
}
