package optimizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tracelens/trace-analyzer/pkg/graph"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

func span(id, parent string, start, end float64) model.Span {
	return model.Span{
		TraceID:       "t",
		SpanID:        id,
		ParentSpanID:  parent,
		OperationName: "op " + id,
		StartTime:     start,
		EndTime:       model.Float(end),
	}
}

func build(total float64, spans ...model.Span) *model.DependencyGraph {
	trace := model.Trace{TraceID: "t", Duration: model.Float(total), Spans: spans}
	return graph.BuildFromTrace(&trace)
}

func hasLog(result model.OptimizationResult, prefix string) bool {
	for _, entry := range result.Optimizations {
		if strings.HasPrefix(entry, prefix) {
			return true
		}
	}
	return false
}

func only(set func(*Options)) Options {
	var opts Options
	set(&opts)
	return opts
}

// wideGraph has a root with several subtrees of varying depth and duration
func wideGraph() *model.DependencyGraph {
	spans := []model.Span{span("root", "", 0, 10000)}
	for i := 0; i < 6; i++ {
		mid := fmt.Sprintf("m%d", i)
		spans = append(spans, span(mid, "root", float64(i*100), float64(i*100+500+i*173%700)))
		parent := mid
		for j := 0; j < 5; j++ {
			id := fmt.Sprintf("m%d-c%d", i, j)
			start := float64(i*100 + j*10)
			spans = append(spans, span(id, parent, start, start+float64((i+2)*(j+3)*37%400)))
			if j%2 == 0 {
				parent = id
			}
		}
	}
	return build(10000, spans...)
}

func TestOptimize_DoesNotModifyInput(t *testing.T) {
	g := wideGraph()
	nodes, edges := len(g.Nodes), len(g.Edges)
	path := append([]string(nil), g.CriticalPath...)

	opts := DefaultOptions()
	opts.MaxNodes = 5
	Optimize(g, opts)

	if len(g.Nodes) != nodes || len(g.Edges) != edges {
		t.Errorf("Input graph changed: %d/%d nodes, %d/%d edges", len(g.Nodes), nodes, len(g.Edges), edges)
	}
	if len(g.CriticalPath) != len(path) {
		t.Errorf("Input critical path changed: %v -> %v", path, g.CriticalPath)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Input graph is inconsistent after optimization: %v", err)
	}
}

func TestOptimize_RespectsMaxNodes(t *testing.T) {
	for _, maxNodes := range []int{1, 3, 7, 15, 30, 100} {
		t.Run(fmt.Sprintf("max=%d", maxNodes), func(t *testing.T) {
			g := wideGraph()
			opts := DefaultOptions()
			opts.MaxNodes = maxNodes

			out, result := Optimize(g, opts)

			if limit := min(len(g.Nodes), maxNodes); len(out.Nodes) > limit {
				t.Errorf("Expected at most %d nodes, got %d", limit, len(out.Nodes))
			}
			if result.OptimizedNodeCount != len(out.Nodes) || result.OptimizedEdgeCount != len(out.Edges) {
				t.Errorf("Result counts %d/%d do not match graph %d/%d",
					result.OptimizedNodeCount, result.OptimizedEdgeCount, len(out.Nodes), len(out.Edges))
			}
			if result.OriginalNodeCount != len(g.Nodes) {
				t.Errorf("Expected original count %d, got %d", len(g.Nodes), result.OriginalNodeCount)
			}
			if !graph.IsPath(out, out.CriticalPath) {
				t.Errorf("Critical path %v is not a path in the optimized graph", out.CriticalPath)
			}
			if len(out.Nodes) > 0 && len(out.CriticalPath) == 0 {
				t.Error("Expected a non-empty critical path")
			}
			if err := out.Validate(); err != nil {
				t.Errorf("Optimized graph is inconsistent: %v", err)
			}
		})
	}
}

func TestOptimize_LimitKeepsCriticalPath(t *testing.T) {
	g := wideGraph()
	opts := Options{MaxNodes: len(g.CriticalPath) + 2}

	out, result := Optimize(g, opts)

	for _, id := range g.CriticalPath {
		if _, ok := out.Nodes[id]; !ok {
			t.Errorf("Critical path node %s was dropped", id)
		}
	}
	if !hasLog(result, fmt.Sprintf("Limited to %d most important nodes", opts.MaxNodes)) {
		t.Errorf("Expected limit entry in %v", result.Optimizations)
	}
}

func TestOptimize_RemovesNoiseAndRelinks(t *testing.T) {
	g := build(1000,
		span("R", "", 0, 1000),
		span("A", "R", 0, 500),
		span("N", "R", 500, 500.5),
		span("B", "N", 500, 510),
	)

	out, result := Optimize(g, only(func(o *Options) { o.RemoveNoise = true }))

	if _, ok := out.Nodes["N"]; ok {
		t.Error("Expected noise node N to be removed")
	}
	e, ok := out.Edge("R", "B")
	if !ok {
		t.Fatal("Expected R to be relinked to B")
	}
	if e.Weight != 10 {
		t.Errorf("Expected relinked edge to keep B's weight 10, got %v", e.Weight)
	}
	if !hasLog(result, "Removed 1 noise nodes") {
		t.Errorf("Expected noise entry, got %v", result.Optimizations)
	}
	if err := out.Validate(); err != nil {
		t.Errorf("Optimized graph is inconsistent: %v", err)
	}
}

func TestOptimize_NoiseKeepsDistinctiveNodes(t *testing.T) {
	errored := span("E", "R", 500, 500.2)
	errored.Status = model.SpanStatusError
	tagged := span("T", "R", 600, 600.2)
	tagged.Tags = map[string]model.TagValue{"error": model.BoolTag(true)}

	g := build(1000, span("R", "", 0, 1000), span("A", "R", 0, 500), errored, tagged)

	out, result := Optimize(g, only(func(o *Options) { o.RemoveNoise = true }))

	for _, id := range []string{"E", "T"} {
		if _, ok := out.Nodes[id]; !ok {
			t.Errorf("Expected error node %s to be kept", id)
		}
	}
	if len(result.Optimizations) != 0 {
		t.Errorf("Expected no optimizations, got %v", result.Optimizations)
	}
}

func TestOptimize_MergesShortSiblings(t *testing.T) {
	g := build(1000,
		span("R", "", 0, 1000),
		span("A", "R", 0, 500),
		span("s1", "R", 500, 502),
		span("s2", "R", 502, 505),
		span("s3", "R", 505, 506),
		span("B", "R", 506, 706),
	)

	out, result := Optimize(g, only(func(o *Options) { o.MergeShortSpans = true }))

	merged, ok := out.Nodes["merged_s1_s3"]
	if !ok {
		t.Fatalf("Expected merged node, got nodes %v", out.NodeIDs())
	}
	if merged.Duration != 6 {
		t.Errorf("Expected summed duration 6, got %v", merged.Duration)
	}
	if merged.StartTime != 500 || merged.EndTime != 506 {
		t.Errorf("Expected window [500,506], got [%v,%v]", merged.StartTime, merged.EndTime)
	}
	if len(merged.Metadata.OriginalNodes) != 3 {
		t.Errorf("Expected 3 original nodes, got %v", merged.Metadata.OriginalNodes)
	}
	if len(out.Nodes) != 4 {
		t.Errorf("Expected 4 nodes after merge, got %d", len(out.Nodes))
	}
	if _, ok := out.Edge("R", "merged_s1_s3"); !ok {
		t.Error("Expected edge from R to merged node")
	}
	if !hasLog(result, "Merged 3 short spans") {
		t.Errorf("Expected merge entry, got %v", result.Optimizations)
	}
	if len(out.CriticalPath) != 2 || out.CriticalPath[1] != "A" {
		t.Errorf("Expected critical path [R A], got %v", out.CriticalPath)
	}
}

func TestOptimize_MergeCarriesGrandchildren(t *testing.T) {
	g := build(1000,
		span("R", "", 0, 1000),
		span("A", "R", 0, 900),
		span("s1", "R", 900, 902),
		span("s2", "R", 902, 904),
		span("g", "s2", 902, 903),
	)

	out, _ := Optimize(g, only(func(o *Options) { o.MergeShortSpans = true }))

	if _, ok := out.Edge("merged_s1_s2", "g"); !ok {
		t.Errorf("Expected merged node to adopt grandchild g, edges: %v", out.EdgeKeys())
	}
	if err := out.Validate(); err != nil {
		t.Errorf("Optimized graph is inconsistent: %v", err)
	}
}

func TestOptimize_SimplifiesLinearChains(t *testing.T) {
	g := build(100,
		span("R", "", 0, 100),
		span("c1", "R", 10, 90),
		span("c2", "c1", 20, 80),
		span("c3", "c2", 30, 70),
		span("c4", "c3", 40, 60),
		span("leaf", "c4", 45, 55),
	)

	out, result := Optimize(g, only(func(o *Options) { o.SimplifyPaths = true }))

	node, ok := out.Nodes["simplified_c1_leaf"]
	if !ok {
		t.Fatalf("Expected simplified node, got %v", out.NodeIDs())
	}
	if node.StartTime != 10 || node.EndTime != 90 || node.Duration != 80 {
		t.Errorf("Expected span [10,90] with duration 80, got [%v,%v] %v", node.StartTime, node.EndTime, node.Duration)
	}
	if len(out.Nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %d", len(out.Nodes))
	}
	if !hasLog(result, "Simplified 1 linear paths") {
		t.Errorf("Expected simplify entry, got %v", result.Optimizations)
	}
	want := []string{"R", "simplified_c1_leaf"}
	if len(out.CriticalPath) != 2 || out.CriticalPath[0] != want[0] || out.CriticalPath[1] != want[1] {
		t.Errorf("Expected critical path %v, got %v", want, out.CriticalPath)
	}
}

func TestOptimize_ShortChainsStay(t *testing.T) {
	g := build(100,
		span("R", "", 0, 100),
		span("x", "R", 10, 90),
		span("y", "x", 20, 80),
		span("z", "y", 30, 70),
	)

	out, result := Optimize(g, only(func(o *Options) { o.SimplifyPaths = true }))

	if len(out.Nodes) != 4 || len(result.Optimizations) != 0 {
		t.Errorf("Expected a three-node chain to stay, got %v (%v)", out.NodeIDs(), result.Optimizations)
	}
}

func TestOptimize_NothingEnabled(t *testing.T) {
	g := wideGraph()

	out, result := Optimize(g, Options{})

	if result.OriginalNodeCount != result.OptimizedNodeCount || result.OriginalEdgeCount != result.OptimizedEdgeCount {
		t.Errorf("Expected unchanged counts, got %+v", result)
	}
	if len(result.Optimizations) != 0 {
		t.Errorf("Expected empty log, got %v", result.Optimizations)
	}
	if len(out.CriticalPath) != len(g.CriticalPath) {
		t.Errorf("Expected critical path to be kept, got %v", out.CriticalPath)
	}
}
