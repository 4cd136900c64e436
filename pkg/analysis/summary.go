package analysis

import (
	"github.com/tracelens/trace-analyzer/pkg/graph"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

// GraphSummary describes the shape of an analyzed graph
type GraphSummary struct {
	NodeCount           int     `json:"nodeCount"`
	EdgeCount           int     `json:"edgeCount"`
	Depth               int     `json:"depth"` // Nodes on the longest root-to-node chain
	CriticalPathLength  int     `json:"criticalPathLength"`
	AverageNodeDuration float64 `json:"averageNodeDuration"` // Over nodes with a positive duration
	MaxNodeDuration     float64 `json:"maxNodeDuration"`
}

// Summarize computes the summary of g
func Summarize(g *model.DependencyGraph) GraphSummary {
	summary := GraphSummary{
		NodeCount:          len(g.Nodes),
		EdgeCount:          len(g.Edges),
		Depth:              depth(g),
		CriticalPathLength: len(g.CriticalPath),
	}

	var total float64
	var counted int
	for _, id := range g.NodeIDs() {
		d := g.Nodes[id].Duration
		if d <= 0 {
			continue
		}
		total += d
		counted++
		summary.MaxNodeDuration = max(summary.MaxNodeDuration, d)
	}
	if counted > 0 {
		summary.AverageNodeDuration = total / float64(counted)
	}
	return summary
}

// depth relaxes chain lengths along the topological order from the roots.
// Only edges pointing forward in that order are relaxed, so on a cyclic graph
// back edges are ignored and the result stays bounded.
func depth(g *model.DependencyGraph) int {
	order := graph.TopologicalOrder(g, g.RootNodes)
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	levels := make(map[string]int, len(order))
	deepest := 0
	for i, id := range order {
		level := max(levels[id], 1)
		deepest = max(deepest, level)
		for _, child := range g.Nodes[id].Children {
			if pos, ok := position[child]; ok && pos > i {
				levels[child] = max(levels[child], level+1)
			}
		}
	}
	return deepest
}
