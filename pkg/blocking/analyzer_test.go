package blocking

import (
	"testing"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

type testNode struct {
	id       string
	name     string
	duration float64
	tags     map[string]model.TagValue
}

type testEdge struct {
	from, to string
	kind     model.EdgeType
}

// newGraph builds a graph whose edge weights are the child durations
func newGraph(t *testing.T, total float64, nodes []testNode, edges []testEdge) *model.DependencyGraph {
	t.Helper()
	g := model.NewDependencyGraph()
	g.TotalDuration = total
	for _, n := range nodes {
		name := n.name
		if name == "" {
			name = n.id
		}
		g.AddNode(&model.GraphNode{
			ID:       n.id,
			Name:     name,
			Duration: n.duration,
			EndTime:  n.duration,
			Metadata: model.NodeMetadata{Tags: n.tags},
		})
	}
	for _, e := range edges {
		err := g.AddEdge(&model.GraphEdge{
			From:   e.from,
			To:     e.to,
			Type:   e.kind,
			Weight: g.Nodes[e.to].Duration,
		})
		if err != nil {
			t.Fatalf("AddEdge(%s, %s) failed: %v", e.from, e.to, err)
		}
	}
	g.RefreshEndpoints()
	return g
}

// sampleGraph: root R(100) calls A(50) which blocks on DB query Q(30);
// R also calls B(10), and B blocks on C(4)
func sampleGraph(t *testing.T) *model.DependencyGraph {
	return newGraph(t, 100,
		[]testNode{
			{id: "R", name: "handler", duration: 100},
			{id: "A", name: "service", duration: 50},
			{id: "Q", name: "SELECT users", duration: 30, tags: map[string]model.TagValue{"db.type": model.StringTag("postgres")}},
			{id: "B", name: "render", duration: 10},
			{id: "C", name: "compute", duration: 4},
		},
		[]testEdge{
			{"R", "A", model.EdgeCalls},
			{"A", "Q", model.EdgeBlocks},
			{"R", "B", model.EdgeCalls},
			{"B", "C", model.EdgeBlocks},
		},
	)
}

func TestIdentifyBlockingPaths_ZeroThresholdReturnsEveryRoute(t *testing.T) {
	g := sampleGraph(t)

	paths := IdentifyBlockingPaths(g, 0)
	if len(paths) != 2 {
		t.Fatalf("Expected 2 root-to-leaf paths, got %d", len(paths))
	}
	for _, p := range paths {
		if p.ImpactPercentage < 0 {
			t.Errorf("Negative impact on path %v", p.Path)
		}
	}

	top := paths[0]
	if len(top.Path) != 3 || top.Path[0] != "R" || top.Path[2] != "Q" {
		t.Errorf("Expected highest-impact path R->A->Q, got %v", top.Path)
	}
	if top.BlockingDuration != 30 {
		t.Errorf("Expected blocking duration 30 (only blocks edges), got %v", top.BlockingDuration)
	}
	if top.TotalDuration != 180 {
		t.Errorf("Expected total duration 180, got %v", top.TotalDuration)
	}
	if top.ImpactPercentage != 30 {
		t.Errorf("Expected impact 30%%, got %v", top.ImpactPercentage)
	}
	if paths[1].ImpactPercentage != 4 {
		t.Errorf("Expected second path impact 4%%, got %v", paths[1].ImpactPercentage)
	}
}

func TestIdentifyBlockingPaths_ThresholdIsMonotonic(t *testing.T) {
	g := sampleGraph(t)

	previous := len(IdentifyBlockingPaths(g, 0))
	for _, threshold := range []float64{0.01, 0.05, 0.1, 0.3, 0.31, 0.5, 1} {
		count := len(IdentifyBlockingPaths(g, threshold))
		if count > previous {
			t.Errorf("Raising threshold to %v increased results from %d to %d", threshold, previous, count)
		}
		previous = count
	}
	if got := len(IdentifyBlockingPaths(g, 0.1)); got != 1 {
		t.Errorf("Expected 1 path at 10%% threshold, got %d", got)
	}
}

func TestIdentifyBlockingPaths_CallsEdgesDoNotBlock(t *testing.T) {
	g := newGraph(t, 100,
		[]testNode{{id: "A", duration: 100}, {id: "B", duration: 90}},
		[]testEdge{{"A", "B", model.EdgeCalls}},
	)

	if paths := IdentifyBlockingPaths(g, DefaultThreshold); len(paths) != 0 {
		t.Errorf("Expected no blocking paths, got %v", paths)
	}
}

func TestIdentifyBlockingPaths_ZeroTotalDuration(t *testing.T) {
	g := sampleGraph(t)
	g.TotalDuration = 0

	paths := IdentifyBlockingPaths(g, 0)
	if len(paths) != 2 {
		t.Fatalf("Expected 2 paths, got %d", len(paths))
	}
	for _, p := range paths {
		if p.ImpactPercentage != 0 {
			t.Errorf("Expected zero impact without a total duration, got %v", p.ImpactPercentage)
		}
		if len(p.Bottlenecks) != 0 {
			t.Errorf("Expected no bottlenecks without a total duration, got %v", p.Bottlenecks)
		}
	}
}

func TestIdentifyBlockingPaths_DiamondVisitsBothBranches(t *testing.T) {
	// R -> A -> D and R -> B -> D: D is reached on two distinct paths
	g := newGraph(t, 100,
		[]testNode{{id: "R", duration: 1}, {id: "A", duration: 1}, {id: "B", duration: 1}, {id: "D", duration: 1}},
		[]testEdge{{"R", "A", model.EdgeBlocks}, {"R", "B", model.EdgeBlocks}, {"A", "D", model.EdgeBlocks}, {"B", "D", model.EdgeBlocks}},
	)

	if paths := IdentifyBlockingPaths(g, 0); len(paths) != 2 {
		t.Errorf("Expected 2 paths through the diamond, got %d", len(paths))
	}
}

func TestIdentifyBlockingPaths_CycleDoesNotLoop(t *testing.T) {
	g := newGraph(t, 100,
		[]testNode{{id: "R", duration: 1}, {id: "X", duration: 1}, {id: "Y", duration: 1}, {id: "L", duration: 1}},
		[]testEdge{{"R", "X", model.EdgeBlocks}, {"X", "Y", model.EdgeBlocks}, {"Y", "X", model.EdgeBlocks}, {"Y", "L", model.EdgeBlocks}},
	)

	paths := IdentifyBlockingPaths(g, 0)
	if len(paths) != 1 {
		t.Fatalf("Expected 1 path, got %d", len(paths))
	}
	want := []string{"R", "X", "Y", "L"}
	for i, id := range want {
		if paths[0].Path[i] != id {
			t.Fatalf("Expected %v, got %v", want, paths[0].Path)
		}
	}
}

func TestIdentifyBottlenecks(t *testing.T) {
	g := sampleGraph(t)

	bottlenecks := IdentifyBottlenecks(g, []string{"R", "B", "C"})
	if len(bottlenecks) != 2 {
		t.Fatalf("Expected 2 bottlenecks (C is below 5%%), got %d", len(bottlenecks))
	}
	if bottlenecks[0].NodeID != "R" || bottlenecks[1].NodeID != "B" {
		t.Errorf("Expected bottlenecks sorted [R B], got [%s %s]", bottlenecks[0].NodeID, bottlenecks[1].NodeID)
	}
	if bottlenecks[1].ImpactPercentage != 10 {
		t.Errorf("Expected B impact 10%%, got %v", bottlenecks[1].ImpactPercentage)
	}
	if len(bottlenecks[0].Recommendations) != 3 {
		t.Errorf("Expected 3 recommendations, got %v", bottlenecks[0].Recommendations)
	}
}

func TestClassifyBottleneck(t *testing.T) {
	tests := []struct {
		name string
		node model.GraphNode
		want model.BottleneckType
	}{
		{"db tag", model.GraphNode{Name: "lookup", Metadata: model.NodeMetadata{Tags: map[string]model.TagValue{"db.type": model.StringTag("redis")}}}, model.BottleneckDatabase},
		{"query name", model.GraphNode{Name: "RunQuery"}, model.BottleneckDatabase},
		{"http tag", model.GraphNode{Name: "call", Metadata: model.NodeMetadata{Tags: map[string]model.TagValue{"http.url": model.StringTag("https://x")}}}, model.BottleneckNetwork},
		{"request name", model.GraphNode{Name: "outgoing request"}, model.BottleneckNetwork},
		{"file name", model.GraphNode{Name: "ReadConfig"}, model.BottleneckIO},
		{"external tag", model.GraphNode{Name: "charge", Metadata: model.NodeMetadata{Tags: map[string]model.TagValue{"component": model.StringTag("external")}}}, model.BottleneckExternal},
		{"external name", model.GraphNode{Name: "external-payments"}, model.BottleneckExternal},
		{"database beats network", model.GraphNode{Name: "http database proxy"}, model.BottleneckDatabase},
		{"empty db tag ignored", model.GraphNode{Name: "resolve", Metadata: model.NodeMetadata{Tags: map[string]model.TagValue{"db.type": model.StringTag("")}}}, model.BottleneckCPU},
		{"fallback", model.GraphNode{Name: "sort"}, model.BottleneckCPU},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyBottleneck(&tt.node); got != tt.want {
				t.Errorf("ClassifyBottleneck(%q) = %s, want %s", tt.node.Name, got, tt.want)
			}
		})
	}
}

func TestRecommendations_ReturnsCopy(t *testing.T) {
	first := Recommendations(model.BottleneckDatabase)
	first[0] = "changed"

	if again := Recommendations(model.BottleneckDatabase); again[0] != "Consider adding database indexes" {
		t.Errorf("Recommendation table was modified through a returned slice: %v", again)
	}
	if got := Recommendations("unknown"); len(got) != 0 {
		t.Errorf("Expected no recommendations for unknown type, got %v", got)
	}
}
