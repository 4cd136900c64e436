package cycles

import (
	"slices"

	"gonum.org/v1/gonum/graph"
)

// TarjanSCC finds all strongly connected components using Tarjan's algorithm.
// Nodes are visited by ascending ID and the recursion is unrolled onto an
// explicit stack, so merged graphs with long chains are handled without deep
// call stacks.
type TarjanSCC struct {
	graph   graph.Directed
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

// NewTarjanSCC creates a new Tarjan SCC finder
func NewTarjanSCC(g graph.Directed) *TarjanSCC {
	return &TarjanSCC{
		graph:   g,
		stack:   make([]int64, 0),
		onStack: make(map[int64]bool),
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
		sccs:    make([][]int64, 0),
	}
}

// FindSCCs returns the components with more than one node, i.e. the cycles
func (t *TarjanSCC) FindSCCs() [][]int64 {
	for _, id := range sortedIDs(t.graph.Nodes()) {
		if _, visited := t.indices[id]; !visited {
			t.strongConnect(id)
		}
	}
	return t.sccs
}

type tarjanFrame struct {
	id         int64
	successors []int64
	next       int
}

func (t *TarjanSCC) visit(id int64) tarjanFrame {
	t.indices[id] = t.index
	t.lowLink[id] = t.index
	t.index++
	t.stack = append(t.stack, id)
	t.onStack[id] = true
	return tarjanFrame{id: id, successors: sortedIDs(t.graph.From(id))}
}

func (t *TarjanSCC) strongConnect(start int64) {
	frames := []tarjanFrame{t.visit(start)}

	for len(frames) > 0 {
		top := &frames[len(frames)-1]

		if top.next < len(top.successors) {
			succ := top.successors[top.next]
			top.next++
			if _, visited := t.indices[succ]; !visited {
				frames = append(frames, t.visit(succ))
			} else if t.onStack[succ] {
				t.lowLink[top.id] = min(t.lowLink[top.id], t.indices[succ])
			}
			continue
		}

		id := top.id
		frames = frames[:len(frames)-1]
		if len(frames) > 0 {
			parent := frames[len(frames)-1].id
			t.lowLink[parent] = min(t.lowLink[parent], t.lowLink[id])
		}

		// id is the root of a component: pop it off the stack
		if t.lowLink[id] == t.indices[id] {
			scc := make([]int64, 0)
			for {
				w := t.stack[len(t.stack)-1]
				t.stack = t.stack[:len(t.stack)-1]
				t.onStack[w] = false
				scc = append(scc, w)
				if w == id {
					break
				}
			}
			if len(scc) > 1 {
				slices.Sort(scc)
				t.sccs = append(t.sccs, scc)
			}
		}
	}
}

func sortedIDs(nodes graph.Nodes) []int64 {
	ids := make([]int64, 0, max(nodes.Len(), 0))
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	slices.Sort(ids)
	return ids
}
