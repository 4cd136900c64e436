package optimizer

import (
	"fmt"
	"sort"

	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

// removeNoise drops nodes shorter than 0.1% of the total duration, relinking
// around them. Roots, critical path nodes and distinctive nodes stay.
func removeNoise(g *model.DependencyGraph, protected map[string]bool) int {
	threshold := g.TotalDuration * noiseFraction
	removed := 0
	for _, id := range g.NodeIDs() {
		node := g.Nodes[id]
		if protected[id] || distinctive(node) || node.Duration >= threshold {
			continue
		}
		logging.Trace("Removing noise node", "node", id, "duration", node.Duration)
		bypass(g, id)
		removed++
	}
	return removed
}

// mergeShortSpans collapses runs of consecutive short children of one parent
// into a single synthetic node. Run members must share the node type and
// have that parent as their only parent. It returns the number of spans merged.
func mergeShortSpans(g *model.DependencyGraph, protected map[string]bool) int {
	threshold := g.TotalDuration * shortSpanFraction
	merged := 0

	for _, parentID := range g.NodeIDs() {
		parent, ok := g.Nodes[parentID]
		if !ok {
			continue
		}

		run := make([]string, 0)
		flush := func() {
			if len(run) > 1 && mergeRun(g, parentID, run) {
				merged += len(run)
			}
			run = make([]string, 0)
		}

		for _, childID := range append([]string(nil), parent.Children...) {
			child, ok := g.Nodes[childID]
			mergeable := ok &&
				!protected[childID] &&
				!distinctive(child) &&
				child.Duration < threshold &&
				len(child.Parents) == 1
			if !mergeable {
				flush()
				continue
			}
			if len(run) > 0 && g.Nodes[run[0]].Type != child.Type {
				flush()
			}
			run = append(run, childID)
		}
		flush()
	}
	return merged
}

func mergeRun(g *model.DependencyGraph, parentID string, run []string) bool {
	first := g.Nodes[run[0]]
	last := g.Nodes[run[len(run)-1]]

	node := &model.GraphNode{
		ID:        fmt.Sprintf("merged_%s_%s", first.ID, last.ID),
		Type:      first.Type,
		Name:      fmt.Sprintf("%s (+%d merged)", first.Name, len(run)-1),
		StartTime: first.StartTime,
		EndTime:   first.EndTime,
		Metadata: model.NodeMetadata{
			TraceID:       first.Metadata.TraceID,
			Status:        first.Metadata.Status,
			Attributes:    map[string]model.TagValue{"merged": model.BoolTag(true)},
			OriginalNodes: append([]string(nil), run...),
		},
	}
	for _, id := range run {
		member := g.Nodes[id]
		node.StartTime = min(node.StartTime, member.StartTime)
		node.EndTime = max(node.EndTime, member.EndTime)
		node.Duration += member.Duration
	}
	if _, exists := g.Nodes[node.ID]; exists {
		return false
	}

	incoming := model.EdgeCalls
	if e, ok := g.Edge(parentID, first.ID); ok {
		incoming = e.Type
	}
	outgoing := collectOutgoing(g, run)

	for _, id := range run {
		g.RemoveNode(id)
	}
	g.AddNode(node)
	_ = g.AddEdge(&model.GraphEdge{From: parentID, To: node.ID, Type: incoming, Weight: node.Duration})
	for _, e := range outgoing {
		e.From = node.ID
		_ = g.AddEdge(e)
	}

	logging.Trace("Merged short spans", "node", node.ID, "count", len(run))
	return true
}

// collectOutgoing copies the edges leaving any of ids toward nodes outside
// ids, one per target, first occurrence first
func collectOutgoing(g *model.DependencyGraph, ids []string) []*model.GraphEdge {
	inside := make(map[string]bool, len(ids))
	for _, id := range ids {
		inside[id] = true
	}
	seen := make(map[string]bool)
	edges := make([]*model.GraphEdge, 0)
	for _, id := range ids {
		for _, childID := range g.Nodes[id].Children {
			if inside[childID] || seen[childID] {
				continue
			}
			if e, ok := g.Edge(id, childID); ok {
				seen[childID] = true
				edges = append(edges, copyEdge(e))
			}
		}
	}
	return edges
}

// simplifyLinearPaths replaces every maximal chain of at least four nodes,
// where each node has exactly one child and that child exactly one parent,
// with one synthetic node. Roots never take part in a chain.
func simplifyLinearPaths(g *model.DependencyGraph) int {
	roots := make(map[string]bool, len(g.RootNodes))
	for _, id := range g.RootNodes {
		roots[id] = true
	}

	simplified := 0
	processed := make(map[string]bool)
	for _, id := range g.NodeIDs() {
		if _, ok := g.Nodes[id]; !ok || processed[id] || roots[id] {
			continue
		}
		chain := linearChain(g, id, roots)
		for _, member := range chain {
			processed[member] = true
		}
		if len(chain) >= minChainLength && replaceChain(g, chain) {
			simplified++
		}
	}
	return simplified
}

// linearChain extends from id backward and forward along single links and
// returns the chain from its first node to its last
func linearChain(g *model.DependencyGraph, id string, roots map[string]bool) []string {
	start := id
	seen := map[string]bool{id: true}
	for {
		node := g.Nodes[start]
		if len(node.Parents) != 1 {
			break
		}
		parentID := node.Parents[0]
		parent, ok := g.Nodes[parentID]
		if !ok || roots[parentID] || seen[parentID] || len(parent.Children) != 1 {
			break
		}
		seen[parentID] = true
		start = parentID
	}

	chain := []string{start}
	onChain := map[string]bool{start: true}
	for current := start; ; {
		node := g.Nodes[current]
		if len(node.Children) != 1 {
			break
		}
		childID := node.Children[0]
		child, ok := g.Nodes[childID]
		if !ok || onChain[childID] || roots[childID] || len(child.Parents) != 1 {
			break
		}
		chain = append(chain, childID)
		onChain[childID] = true
		current = childID
	}
	return chain
}

func replaceChain(g *model.DependencyGraph, chain []string) bool {
	first := g.Nodes[chain[0]]
	last := g.Nodes[chain[len(chain)-1]]

	node := &model.GraphNode{
		ID:        fmt.Sprintf("simplified_%s_%s", first.ID, last.ID),
		Type:      first.Type,
		Name:      fmt.Sprintf("%s ... %s (%d steps)", first.Name, last.Name, len(chain)),
		StartTime: first.StartTime,
		EndTime:   first.EndTime,
		Metadata: model.NodeMetadata{
			TraceID: first.Metadata.TraceID,
			Status:  first.Metadata.Status,
			Attributes: map[string]model.TagValue{
				"simplified": model.BoolTag(true),
				"stepCount":  model.NumberTag(float64(len(chain))),
			},
			OriginalNodes: append([]string(nil), chain...),
		},
	}
	for _, id := range chain {
		member := g.Nodes[id]
		node.StartTime = min(node.StartTime, member.StartTime)
		node.EndTime = max(node.EndTime, member.EndTime)
	}
	node.Duration = node.EndTime - node.StartTime
	if _, exists := g.Nodes[node.ID]; exists {
		return false
	}

	incoming := make([]*model.GraphEdge, 0, len(first.Parents))
	for _, parentID := range first.Parents {
		if e, ok := g.Edge(parentID, first.ID); ok {
			incoming = append(incoming, copyEdge(e))
		}
	}
	outgoing := collectOutgoing(g, []string{last.ID})

	for _, id := range chain {
		g.RemoveNode(id)
	}
	g.AddNode(node)
	for _, e := range incoming {
		e.To = node.ID
		e.Weight = node.Duration
		_ = g.AddEdge(e)
	}
	for _, e := range outgoing {
		e.From = node.ID
		_ = g.AddEdge(e)
	}

	logging.Trace("Simplified linear path", "node", node.ID, "steps", len(chain))
	return true
}

// limitNodes keeps the critical path plus the longest remaining nodes, up to
// maxNodes, and relinks around everything else. It returns the number of
// dropped nodes.
func limitNodes(g *model.DependencyGraph, maxNodes int) int {
	keep := make(map[string]bool, maxNodes)
	for _, id := range g.CriticalPath {
		if len(keep) >= maxNodes {
			break
		}
		if _, ok := g.Nodes[id]; ok {
			keep[id] = true
		}
	}

	byDuration := g.NodeIDs()
	sort.SliceStable(byDuration, func(i, j int) bool {
		return g.Nodes[byDuration[i]].Duration > g.Nodes[byDuration[j]].Duration
	})
	for _, id := range byDuration {
		if len(keep) >= maxNodes {
			break
		}
		keep[id] = true
	}

	dropped := 0
	for _, id := range g.NodeIDs() {
		if !keep[id] {
			bypass(g, id)
			dropped++
		}
	}
	return dropped
}
