package graph

import (
	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

// Directed is a gonum view of a DependencyGraph. Span IDs are mapped to
// int64 node IDs in the graph's node order, so algorithms that visit nodes by
// ascending ID see them in a stable order.
type Directed struct {
	graph *simple.DirectedGraph
	ids   map[string]int64 // Map from span ID to graph ID
	spans []string         // Graph ID to span ID
}

// NewDirected builds the gonum view of g. Self-loops are skipped since
// simple.DirectedGraph does not allow them.
func NewDirected(g *model.DependencyGraph) *Directed {
	d := &Directed{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64, len(g.Nodes)),
		spans: make([]string, 0, len(g.Nodes)),
	}

	for _, id := range g.NodeIDs() {
		nodeID := int64(len(d.spans))
		d.ids[id] = nodeID
		d.spans = append(d.spans, id)
		d.graph.AddNode(simple.Node(nodeID))
	}

	for _, key := range g.EdgeKeys() {
		edge := g.Edges[key]
		from, okFrom := d.ids[edge.From]
		to, okTo := d.ids[edge.To]
		if !okFrom || !okTo || from == to {
			continue
		}
		if !d.graph.HasEdgeFromTo(from, to) {
			d.graph.SetEdge(d.graph.NewEdge(d.graph.Node(from), d.graph.Node(to)))
		}
	}
	return d
}

// Graph returns the underlying gonum graph
func (d *Directed) Graph() gonumgraph.Directed {
	return d.graph
}

// NodeID returns the gonum ID of a span
func (d *Directed) NodeID(spanID string) (int64, bool) {
	id, ok := d.ids[spanID]
	return id, ok
}

// SpanID returns the span ID behind a gonum node ID
func (d *Directed) SpanID(id int64) (string, bool) {
	if id < 0 || id >= int64(len(d.spans)) {
		return "", false
	}
	return d.spans[id], true
}

// Len returns the number of nodes
func (d *Directed) Len() int {
	return len(d.spans)
}
