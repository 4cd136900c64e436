// Package optimizer shrinks dependency graphs so that path enumeration stays
// tractable on large or merged traces.
package optimizer

import (
	"fmt"
	"time"

	"github.com/tracelens/trace-analyzer/pkg/graph"
	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

const (
	// Fractions of the graph's total duration below which a node counts as
	// noise, or as short enough to merge with its siblings
	noiseFraction     = 0.001
	shortSpanFraction = 0.01

	// Linear chains shorter than this are left alone
	minChainLength = 4
)

// Options selects the transformations Optimize applies. The zero value
// applies none; start from DefaultOptions.
type Options struct {
	RemoveNoise     bool
	MergeShortSpans bool
	SimplifyPaths   bool
	MaxNodes        int // 0 means unbounded
}

// DefaultOptions enables every transformation without a node limit
func DefaultOptions() Options {
	return Options{
		RemoveNoise:     true,
		MergeShortSpans: true,
		SimplifyPaths:   true,
	}
}

// Optimize returns a reduced copy of g together with a report of what was
// done. g itself is never modified.
//
// Transformations run in a fixed order: noise removal, short-span merging,
// linear-path simplification, then node limiting. Whenever the structure
// changed, roots, leaves and the critical path are recomputed on the result.
func Optimize(g *model.DependencyGraph, opts Options) (*model.DependencyGraph, model.OptimizationResult) {
	start := time.Now()
	out := g.Clone()

	result := model.OptimizationResult{
		OriginalNodeCount: len(g.Nodes),
		OriginalEdgeCount: len(g.Edges),
		Optimizations:     make([]string, 0),
	}

	protected := make(map[string]bool, len(out.RootNodes)+len(out.CriticalPath))
	for _, id := range out.RootNodes {
		protected[id] = true
	}
	for _, id := range out.CriticalPath {
		protected[id] = true
	}
	changed := false

	if opts.RemoveNoise {
		if n := removeNoise(out, protected); n > 0 {
			result.Optimizations = append(result.Optimizations, fmt.Sprintf("Removed %d noise nodes", n))
			changed = true
		}
	}
	if opts.MergeShortSpans {
		if n := mergeShortSpans(out, protected); n > 0 {
			result.Optimizations = append(result.Optimizations, fmt.Sprintf("Merged %d short spans", n))
			changed = true
		}
	}
	if opts.SimplifyPaths {
		if n := simplifyLinearPaths(out); n > 0 {
			result.Optimizations = append(result.Optimizations, fmt.Sprintf("Simplified %d linear paths", n))
			changed = true
		}
	}
	if opts.MaxNodes > 0 && len(out.Nodes) > opts.MaxNodes {
		if changed {
			refresh(out)
		}
		limitNodes(out, opts.MaxNodes)
		result.Optimizations = append(result.Optimizations, fmt.Sprintf("Limited to %d most important nodes", opts.MaxNodes))
		changed = true
	}

	if changed {
		refresh(out)
	}

	result.OptimizedNodeCount = len(out.Nodes)
	result.OptimizedEdgeCount = len(out.Edges)
	result.ProcessingTime = time.Since(start)

	logging.Debug("Optimized graph",
		"nodesBefore", result.OriginalNodeCount,
		"nodesAfter", result.OptimizedNodeCount,
		"edgesBefore", result.OriginalEdgeCount,
		"edgesAfter", result.OptimizedEdgeCount,
		"elapsed", result.ProcessingTime)
	return out, result
}

// refresh recomputes the derived views after structural changes. The
// critical path is not incrementally valid, so it is rebuilt from scratch.
func refresh(g *model.DependencyGraph) {
	g.RefreshEndpoints()
	g.CriticalPath = graph.CriticalPath(g)
}

// distinctive reports whether a node carries information that must survive
// optimization regardless of its duration
func distinctive(node *model.GraphNode) bool {
	if node.Type != model.NodeTypeSpan {
		return true
	}
	if node.Metadata.Status.IsError() {
		return true
	}
	if v, ok := node.Tag("error"); ok && v.Truthy() {
		return true
	}
	return len(node.Metadata.OriginalNodes) > 0
}

// bypass removes a node and connects each of its parents directly to each
// of its children, reusing the node's outgoing edge for the new link.
func bypass(g *model.DependencyGraph, id string) {
	node, ok := g.Nodes[id]
	if !ok {
		return
	}
	parents := append([]string(nil), node.Parents...)
	children := append([]string(nil), node.Children...)

	for _, childID := range children {
		outgoing, ok := g.Edge(id, childID)
		if !ok {
			continue
		}
		for _, parentID := range parents {
			if parentID == childID || parentID == id || childID == id {
				continue
			}
			if _, exists := g.Edge(parentID, childID); exists {
				continue
			}
			link := copyEdge(outgoing)
			link.From = parentID
			_ = g.AddEdge(link)
		}
	}
	g.RemoveNode(id)
}

func copyEdge(e *model.GraphEdge) *model.GraphEdge {
	cp := *e
	cp.Metadata = make(map[string]model.TagValue, len(e.Metadata))
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}
