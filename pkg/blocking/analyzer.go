// Package blocking finds the root-to-leaf paths whose blocking edges account
// for a significant share of a graph's duration, and the bottleneck nodes
// along them.
package blocking

import (
	"sort"
	"strings"

	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

const (
	// DefaultThreshold is the minimum share (0-1) of total duration a path
	// must block to be reported
	DefaultThreshold = 0.1

	// BottleneckImpactPercent is the minimum share, in percent, a single
	// node's duration must have to count as a bottleneck
	BottleneckImpactPercent = 5.0
)

// IdentifyBlockingPaths enumerates every simple root-to-leaf path and keeps
// those whose blocking impact is at least threshold*100 percent, highest
// impact first.
//
// Only "blocks" edges contribute to the blocking duration. The number of
// paths grows exponentially with fan-out, so callers bound the graph size
// beforehand.
func IdentifyBlockingPaths(g *model.DependencyGraph, threshold float64) []model.BlockingPath {
	paths := make([]model.BlockingPath, 0)
	enumerated := 0

	for _, root := range g.RootNodes {
		walkPaths(g, root, func(path []string) {
			enumerated++
			blocking := blockingDuration(g, path)
			impact := percentOf(blocking, g.TotalDuration)
			if impact < threshold*100 {
				return
			}
			paths = append(paths, model.BlockingPath{
				Path:             path,
				TotalDuration:    pathDuration(g, path),
				BlockingDuration: blocking,
				ImpactPercentage: impact,
				Bottlenecks:      IdentifyBottlenecks(g, path),
			})
		})
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].ImpactPercentage > paths[j].ImpactPercentage
	})

	logging.Trace("Identified blocking paths",
		"enumerated", enumerated, "kept", len(paths), "threshold", threshold)
	return paths
}

// walkPaths calls fn with every simple path from start to a node without
// children. A node never appears twice on one path, but sibling branches are
// explored independently. fn receives its own copy of the path.
func walkPaths(g *model.DependencyGraph, start string, fn func(path []string)) {
	if _, ok := g.Nodes[start]; !ok {
		return
	}

	type frame struct {
		id   string
		next int
	}
	stack := []frame{{id: start}}
	path := []string{start}
	onPath := map[string]bool{start: true}

	pop := func() {
		last := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		path = path[:len(path)-1]
		delete(onPath, last.id)
	}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := g.Nodes[top.id].Children

		if len(children) == 0 {
			fn(append([]string(nil), path...))
			pop()
			continue
		}
		if top.next >= len(children) {
			pop()
			continue
		}

		child := children[top.next]
		top.next++
		if _, ok := g.Nodes[child]; !ok || onPath[child] {
			continue
		}
		stack = append(stack, frame{id: child})
		path = append(path, child)
		onPath[child] = true
	}
}

func pathDuration(g *model.DependencyGraph, path []string) float64 {
	total := 0.0
	for _, id := range path {
		if node, ok := g.Nodes[id]; ok {
			total += node.Duration
		}
	}
	return total
}

func blockingDuration(g *model.DependencyGraph, path []string) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		if edge, ok := g.Edge(path[i-1], path[i]); ok && edge.Type == model.EdgeBlocks {
			total += edge.Weight
		}
	}
	return total
}

// percentOf returns part as a percentage of whole, or 0 when whole is not positive
func percentOf(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

// IdentifyBottlenecks returns the nodes on path whose own duration is at
// least 5% of the graph's total duration, highest impact first.
func IdentifyBottlenecks(g *model.DependencyGraph, path []string) []model.Bottleneck {
	bottlenecks := make([]model.Bottleneck, 0)
	for _, id := range path {
		node, ok := g.Nodes[id]
		if !ok || node.Duration <= 0 {
			continue
		}
		impact := percentOf(node.Duration, g.TotalDuration)
		if impact < BottleneckImpactPercent {
			continue
		}
		kind := ClassifyBottleneck(node)
		bottlenecks = append(bottlenecks, model.Bottleneck{
			NodeID:           id,
			Name:             node.Name,
			Duration:         node.Duration,
			ImpactPercentage: impact,
			Type:             kind,
			Recommendations:  Recommendations(kind),
		})
	}

	sort.SliceStable(bottlenecks, func(i, j int) bool {
		return bottlenecks[i].ImpactPercentage > bottlenecks[j].ImpactPercentage
	})
	return bottlenecks
}

// ClassifyBottleneck guesses where a node spends its time from its tags and
// its lower-cased name. Database hints win over network, network over I/O,
// I/O over external; anything else is CPU.
func ClassifyBottleneck(node *model.GraphNode) model.BottleneckType {
	name := strings.ToLower(node.Name)

	if hasTag(node, "db.type") || containsAny(name, "database", "query") {
		return model.BottleneckDatabase
	}
	if hasTag(node, "http.url") || containsAny(name, "http", "request") {
		return model.BottleneckNetwork
	}
	if containsAny(name, "file", "read", "write") {
		return model.BottleneckIO
	}
	if component, ok := node.Tag("component"); ok && component.String() == "external" {
		return model.BottleneckExternal
	}
	if strings.Contains(name, "external") {
		return model.BottleneckExternal
	}
	return model.BottleneckCPU
}

func hasTag(node *model.GraphNode, key string) bool {
	v, ok := node.Tag(key)
	return ok && v.Truthy()
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
