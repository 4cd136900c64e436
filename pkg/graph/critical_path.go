package graph

import (
	"math"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

// TopologicalOrder returns the nodes reachable from roots so that every node
// comes after all of its ancestors. It runs a post-order depth-first walk from
// each root and emits the finished nodes in reverse. Nodes that no root
// reaches are left out.
//
// The walk uses an explicit stack, so deep traces do not grow the goroutine stack.
func TopologicalOrder(g *model.DependencyGraph, roots []string) []string {
	type frame struct {
		id   string
		next int // index of the next child to visit
	}

	visited := make(map[string]bool, len(g.Nodes))
	finished := make([]string, 0, len(g.Nodes))

	for _, root := range roots {
		if visited[root] {
			continue
		}
		if _, ok := g.Nodes[root]; !ok {
			continue
		}
		visited[root] = true
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.Nodes[top.id].Children
			if top.next < len(children) {
				child := children[top.next]
				top.next++
				if _, ok := g.Nodes[child]; ok && !visited[child] {
					visited[child] = true
					stack = append(stack, frame{id: child})
				}
				continue
			}
			finished = append(finished, top.id)
			stack = stack[:len(stack)-1]
		}
	}

	// Popping the post-order stack gives the topological order
	order := make([]string, len(finished))
	for i, id := range finished {
		order[len(finished)-1-i] = id
	}
	return order
}

// CriticalPath computes the longest root-to-node path, weighting each edge
// with its child's duration (the Critical Path Method).
//
// Concurrent children are treated as if they ran one after the other, so the
// path weight over-counts overlapping work. That approximation is intended.
func CriticalPath(g *model.DependencyGraph) []string {
	distances := make(map[string]float64, len(g.Nodes))
	predecessors := make(map[string]string, len(g.Nodes))
	for id := range g.Nodes {
		distances[id] = math.Inf(-1)
	}
	for _, root := range g.RootNodes {
		if _, ok := g.Nodes[root]; ok {
			distances[root] = 0
		}
	}

	for _, id := range TopologicalOrder(g, g.RootNodes) {
		current := distances[id]
		for _, childID := range g.Nodes[id].Children {
			weight := 0.0
			if edge, ok := g.Edge(id, childID); ok {
				weight = edge.Weight
			}
			if candidate := current + weight; candidate > distances[childID] {
				distances[childID] = candidate
				predecessors[childID] = id
			}
		}
	}

	end := ""
	best := math.Inf(-1)
	for _, id := range g.NodeIDs() {
		if distances[id] > best {
			best = distances[id]
			end = id
		}
	}
	if end == "" {
		return make([]string, 0)
	}

	path := make([]string, 0)
	seen := make(map[string]bool)
	for current := end; current != "" && !seen[current]; current = predecessors[current] {
		seen[current] = true
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// PathWeight sums the weights of the edges joining consecutive path nodes.
func PathWeight(g *model.DependencyGraph, path []string) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		if edge, ok := g.Edge(path[i-1], path[i]); ok {
			total += edge.Weight
		}
	}
	return total
}

// IsPath reports whether every node on path exists and each consecutive pair
// is joined by an edge.
func IsPath(g *model.DependencyGraph, path []string) bool {
	for i, id := range path {
		if _, ok := g.Nodes[id]; !ok {
			return false
		}
		if i > 0 {
			if _, ok := g.Edge(path[i-1], id); !ok {
				return false
			}
		}
	}
	return true
}
