package cycles

import (
	"sort"

	"github.com/tracelens/trace-analyzer/pkg/graph"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

// FindSpanCycles returns every group of spans that reach each other.
// A single trace is a forest and never has one; merged graphs can, when
// traces disagree about which span called which. Each cycle lists span IDs
// in graph node order, and cycles are ordered by their first span.
func FindSpanCycles(g *model.DependencyGraph) [][]string {
	d := graph.NewDirected(g)
	sccs := NewTarjanSCC(d.Graph()).FindSCCs()

	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })

	cycles := make([][]string, 0, len(sccs))
	for _, scc := range sccs {
		spans := make([]string, 0, len(scc))
		for _, nodeID := range scc {
			if id, ok := d.SpanID(nodeID); ok {
				spans = append(spans, id)
			}
		}
		if len(spans) > 1 {
			cycles = append(cycles, spans)
		}
	}
	return cycles
}
