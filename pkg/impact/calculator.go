// Package impact estimates how much of a graph's duration could be saved.
package impact

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/tracelens/trace-analyzer/pkg/blocking"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

const (
	// MaxOptimizationPotential caps the reported potential; claiming that a
	// whole trace can be optimized away is never credible
	MaxOptimizationPotential = 80.0

	majorBottleneckThreshold = 0.05
	majorBottleneckLimit     = 5
)

// CalculatePerformanceImpact summarizes the critical path share, the share of
// the top bottlenecks, and the time that running siblings in parallel could save.
func CalculatePerformanceImpact(g *model.DependencyGraph) model.PerformanceImpact {
	criticalPath := 0.0
	for _, id := range g.CriticalPath {
		if node, ok := g.Nodes[id]; ok {
			criticalPath += node.Duration
		}
	}

	bottleneckImpact := 0.0
	for _, b := range MajorBottlenecks(g) {
		bottleneckImpact += b.ImpactPercentage
	}

	parallel := percentOf(ParallelizableTime(g), g.TotalDuration)

	return model.PerformanceImpact{
		CriticalPathImpact:         percentOf(criticalPath, g.TotalDuration),
		BottleneckImpact:           bottleneckImpact,
		ParallelizationOpportunity: parallel,
		TotalOptimizationPotential: min(bottleneckImpact+parallel, MaxOptimizationPotential),
	}
}

// MajorBottlenecks returns the five highest-impact bottlenecks found on
// blocking paths at a 5% threshold, each node at most once.
func MajorBottlenecks(g *model.DependencyGraph) []model.Bottleneck {
	best := make(map[string]model.Bottleneck)
	order := make([]string, 0)
	for _, path := range blocking.IdentifyBlockingPaths(g, majorBottleneckThreshold) {
		for _, b := range path.Bottlenecks {
			existing, seen := best[b.NodeID]
			if !seen {
				order = append(order, b.NodeID)
			}
			if !seen || b.ImpactPercentage > existing.ImpactPercentage {
				best[b.NodeID] = b
			}
		}
	}

	unique := make([]model.Bottleneck, 0, len(order))
	for _, id := range order {
		unique = append(unique, best[id])
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].ImpactPercentage > unique[j].ImpactPercentage
	})
	if len(unique) > majorBottleneckLimit {
		unique = unique[:majorBottleneckLimit]
	}
	return unique
}

// ParallelizableTime groups nodes that share a parent, transitively through
// shared parents, and sums over every group of two or more the time saved if
// its members ran concurrently: the group's total minus its longest member.
//
// The groups are the connected components of a sibling graph that links each
// parent's first child to its other children.
func ParallelizableTime(g *model.DependencyGraph) float64 {
	siblings := simple.NewUndirectedGraph()
	ids := make(map[string]int64)
	spans := make([]string, 0)
	nodeFor := func(spanID string) graph.Node {
		if id, ok := ids[spanID]; ok {
			return siblings.Node(id)
		}
		n := simple.Node(len(spans))
		ids[spanID] = n.ID()
		spans = append(spans, spanID)
		siblings.AddNode(n)
		return n
	}

	for _, id := range g.NodeIDs() {
		var first graph.Node
		for _, child := range g.Nodes[id].Children {
			if _, ok := g.Nodes[child]; !ok {
				continue
			}
			n := nodeFor(child)
			if first == nil {
				first = n
				continue
			}
			if n.ID() != first.ID() {
				siblings.SetEdge(siblings.NewEdge(first, n))
			}
		}
	}

	components := topo.ConnectedComponents(siblings)
	// Fix the summation order so the float result does not depend on map iteration
	for _, c := range components {
		sort.Slice(c, func(i, j int) bool { return c[i].ID() < c[j].ID() })
	}
	sort.Slice(components, func(i, j int) bool { return components[i][0].ID() < components[j][0].ID() })

	saved := 0.0
	for _, c := range components {
		if len(c) < 2 {
			continue
		}
		total, longest := 0.0, 0.0
		for _, n := range c {
			d := g.Nodes[spans[n.ID()]].Duration
			total += d
			longest = max(longest, d)
		}
		saved += total - longest
	}
	return saved
}

func percentOf(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}
