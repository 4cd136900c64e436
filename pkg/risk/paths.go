package risk

import (
	"encoding/json"
	"strings"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

// PathSeparator joins node names in a rendered execution path
const PathSeparator = " → "

// pathFinder holds a breadth-first search from all roots at once, so every
// node's shortest root path is known before any vulnerability is matched.
type pathFinder struct {
	graph        *model.DependencyGraph
	predecessors map[string]string
	reached      map[string]bool
	haystacks    map[string]string // lower-cased searchable text per node
}

func newPathFinder(g *model.DependencyGraph) *pathFinder {
	f := &pathFinder{
		graph:        g,
		predecessors: make(map[string]string, len(g.Nodes)),
		reached:      make(map[string]bool, len(g.Nodes)),
		haystacks:    make(map[string]string, len(g.Nodes)),
	}

	// Seed the queue with every root; the first arrival wins
	queue := make([]string, 0, len(g.Nodes))
	for _, root := range g.RootNodes {
		if _, ok := g.Nodes[root]; ok && !f.reached[root] {
			f.reached[root] = true
			queue = append(queue, root)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range g.Nodes[current].Children {
			if _, ok := g.Nodes[child]; !ok || f.reached[child] {
				continue
			}
			f.reached[child] = true
			f.predecessors[child] = current
			queue = append(queue, child)
		}
	}

	for id, node := range g.Nodes {
		f.haystacks[id] = searchText(node)
	}
	return f
}

// searchText is the node's name, metadata and tags as one lower-cased string
func searchText(node *model.GraphNode) string {
	var b strings.Builder
	b.WriteString(node.Name)
	if meta, err := json.Marshal(node.Metadata); err == nil {
		b.WriteByte(' ')
		b.Write(meta)
	}
	for key, value := range node.Metadata.Tags {
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value.String())
	}
	return strings.ToLower(b.String())
}

// normalizeName drops hyphens and underscores so that "lodash-es",
// "lodash_es" and "lodashes" match each other
func normalizeName(s string) string {
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}

// references reports whether the node's text mentions the package
func (f *pathFinder) references(id, packageName string) bool {
	haystack := f.haystacks[id]
	needle := strings.ToLower(packageName)
	if strings.Contains(haystack, needle) {
		return true
	}
	normalized := normalizeName(needle)
	return normalized != "" && strings.Contains(normalizeName(haystack), normalized)
}

// executionPaths renders the shortest root path to every node that
// references the package. Nodes no root reaches are skipped.
func (f *pathFinder) executionPaths(packageName string) []string {
	paths := make([]string, 0)
	if strings.TrimSpace(packageName) == "" {
		return paths
	}
	for _, id := range f.graph.NodeIDs() {
		if !f.reached[id] || !f.references(id, packageName) {
			continue
		}
		paths = append(paths, f.render(id))
	}
	return paths
}

func (f *pathFinder) render(target string) string {
	names := make([]string, 0)
	for current := target; ; {
		names = append(names, f.graph.Nodes[current].Name)
		prev, ok := f.predecessors[current]
		if !ok {
			break
		}
		current = prev
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, PathSeparator)
}
