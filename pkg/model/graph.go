package model

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrMissingNode      = errors.New("graph: edge references a missing node")
	ErrInconsistentLink = errors.New("graph: parent/child links are inconsistent")
)

// NodeType represents what a graph node stands for
type NodeType string

const (
	NodeTypeSpan       NodeType = "span"
	NodeTypeResource   NodeType = "resource"
	NodeTypeDependency NodeType = "dependency"
)

// EdgeType represents the relation between two nodes
type EdgeType string

const (
	EdgeCalls    EdgeType = "calls"    // Parent span invoked child span
	EdgeDepends  EdgeType = "depends"  // Static dependency
	EdgeBlocks   EdgeType = "blocks"   // Child execution blocks the parent
	EdgeTriggers EdgeType = "triggers" // Asynchronous follow-up
)

// NodeMetadata carries the known metadata of a node plus an open attribute map
// for pass-through values.
type NodeMetadata struct {
	TraceID       string              `json:"traceId,omitempty"`
	Status        SpanStatus          `json:"status,omitempty"`
	Tags          map[string]TagValue `json:"tags,omitempty"`
	Attributes    map[string]TagValue `json:"attributes,omitempty"`
	OriginalNodes []string            `json:"originalNodes,omitempty"` // Set on synthetic merged/simplified nodes
}

// Merge shallow-merges other into m: non-empty scalar fields and a non-nil tag
// map replace the current ones, attributes are merged key by key.
func (m *NodeMetadata) Merge(other NodeMetadata) {
	if other.TraceID != "" {
		m.TraceID = other.TraceID
	}
	if other.Status != "" {
		m.Status = other.Status
	}
	if other.Tags != nil {
		m.Tags = copyTags(other.Tags)
	}
	if len(other.Attributes) > 0 {
		if m.Attributes == nil {
			m.Attributes = make(map[string]TagValue, len(other.Attributes))
		}
		for k, v := range other.Attributes {
			m.Attributes[k] = v
		}
	}
	if other.OriginalNodes != nil {
		m.OriginalNodes = append([]string(nil), other.OriginalNodes...)
	}
}

func (m NodeMetadata) clone() NodeMetadata {
	out := m
	out.Tags = copyTags(m.Tags)
	out.Attributes = copyTags(m.Attributes)
	if m.OriginalNodes != nil {
		out.OriginalNodes = append([]string(nil), m.OriginalNodes...)
	}
	return out
}

// GraphNode is one span, or a synthetic span produced by graph optimization
type GraphNode struct {
	ID        string       `json:"id"`
	Type      NodeType     `json:"type"`
	Name      string       `json:"name"`
	StartTime float64      `json:"startTime"`
	EndTime   float64      `json:"endTime"`
	Duration  float64      `json:"duration"`
	Metadata  NodeMetadata `json:"metadata"`
	Children  []string     `json:"children"` // Back-references by ID, not ownership
	Parents   []string     `json:"parents"`
}

// Tag returns the tag stored under key
func (n *GraphNode) Tag(key string) (TagValue, bool) {
	v, ok := n.Metadata.Tags[key]
	return v, ok
}

// GraphEdge is a directed relation between two nodes
type GraphEdge struct {
	From     string              `json:"from"`
	To       string              `json:"to"`
	Type     EdgeType            `json:"type"`
	Weight   float64             `json:"weight"` // Typically the child's duration
	Metadata map[string]TagValue `json:"metadata,omitempty"`
}

// Key returns the edge's map key
func (e *GraphEdge) Key() string {
	return EdgeKey(e.From, e.To)
}

// EdgeKey builds the "from->to" key used in DependencyGraph.Edges
func EdgeKey(from, to string) string {
	return from + "->" + to
}

// DependencyGraph is the graph built from one trace, or merged from many.
// A single-trace graph is a forest; a merged graph is a general DAG and may
// even contain cycles when traces disagree about parentage.
type DependencyGraph struct {
	Nodes         map[string]*GraphNode `json:"nodes"`
	Edges         map[string]*GraphEdge `json:"edges"`
	RootNodes     []string              `json:"rootNodes"`
	LeafNodes     []string              `json:"leafNodes"`
	CriticalPath  []string              `json:"criticalPath"`
	TotalDuration float64               `json:"totalDuration"` // Reference for all impact percentages

	order []string // node insertion order, keeps every traversal deterministic
}

// NewDependencyGraph creates a new empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		Nodes:        make(map[string]*GraphNode),
		Edges:        make(map[string]*GraphEdge),
		RootNodes:    make([]string, 0),
		LeafNodes:    make([]string, 0),
		CriticalPath: make([]string, 0),
	}
}

// AddNode inserts a node. It returns false, leaving the graph untouched, if a
// node with the same ID already exists.
func (g *DependencyGraph) AddNode(node *GraphNode) bool {
	if _, exists := g.Nodes[node.ID]; exists {
		return false
	}
	if node.Type == "" {
		node.Type = NodeTypeSpan
	}
	if node.Children == nil {
		node.Children = make([]string, 0)
	}
	if node.Parents == nil {
		node.Parents = make([]string, 0)
	}
	g.Nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return true
}

// Node returns the node with the given ID
func (g *DependencyGraph) Node(id string) (*GraphNode, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Edge returns the edge from -> to
func (g *DependencyGraph) Edge(from, to string) (*GraphEdge, bool) {
	e, ok := g.Edges[EdgeKey(from, to)]
	return e, ok
}

// AddEdge inserts an edge and links both endpoints. Both nodes must exist.
// Re-adding an existing key replaces the edge without duplicating links.
func (g *DependencyGraph) AddEdge(edge *GraphEdge) error {
	from, ok := g.Nodes[edge.From]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingNode, edge.From)
	}
	to, ok := g.Nodes[edge.To]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingNode, edge.To)
	}
	if edge.Metadata == nil {
		edge.Metadata = make(map[string]TagValue)
	}

	key := edge.Key()
	_, existed := g.Edges[key]
	g.Edges[key] = edge
	if existed {
		return nil
	}

	if !contains(from.Children, edge.To) {
		from.Children = append(from.Children, edge.To)
	}
	if !contains(to.Parents, edge.From) {
		to.Parents = append(to.Parents, edge.From)
	}
	return nil
}

// RemoveEdge deletes the edge from -> to and its back-references
func (g *DependencyGraph) RemoveEdge(from, to string) {
	delete(g.Edges, EdgeKey(from, to))
	if n, ok := g.Nodes[from]; ok {
		n.Children = without(n.Children, to)
	}
	if n, ok := g.Nodes[to]; ok {
		n.Parents = without(n.Parents, from)
	}
}

// RemoveNode deletes a node with all its incident edges. Root, leaf and
// critical path lists are not touched; call RefreshEndpoints afterwards.
func (g *DependencyGraph) RemoveNode(id string) {
	node, ok := g.Nodes[id]
	if !ok {
		return
	}
	for _, parentID := range append([]string(nil), node.Parents...) {
		g.RemoveEdge(parentID, id)
	}
	for _, childID := range append([]string(nil), node.Children...) {
		g.RemoveEdge(id, childID)
	}
	delete(g.Nodes, id)
	g.order = without(g.order, id)
}

// NodeIDs returns node IDs in insertion order. Nodes added by decoding rather
// than AddNode follow in sorted order.
func (g *DependencyGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	seen := make(map[string]bool, len(g.Nodes))
	for _, id := range g.order {
		if _, ok := g.Nodes[id]; ok && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	if len(ids) == len(g.Nodes) {
		return ids
	}
	extra := make([]string, 0)
	for id := range g.Nodes {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(ids, extra...)
}

// EdgeKeys returns edge keys sorted for stable iteration
func (g *DependencyGraph) EdgeKeys() []string {
	keys := make([]string, 0, len(g.Edges))
	for k := range g.Edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RefreshEndpoints recomputes RootNodes (no parents) and LeafNodes (no children)
func (g *DependencyGraph) RefreshEndpoints() {
	g.RootNodes = make([]string, 0)
	g.LeafNodes = make([]string, 0)
	for _, id := range g.NodeIDs() {
		node := g.Nodes[id]
		if len(node.Parents) == 0 {
			g.RootNodes = append(g.RootNodes, id)
		}
		if len(node.Children) == 0 {
			g.LeafNodes = append(g.LeafNodes, id)
		}
	}
}

// Clone returns a deep copy that shares no mutable state with g
func (g *DependencyGraph) Clone() *DependencyGraph {
	out := NewDependencyGraph()
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		cp := *n
		cp.Metadata = n.Metadata.clone()
		cp.Children = append(make([]string, 0, len(n.Children)), n.Children...)
		cp.Parents = append(make([]string, 0, len(n.Parents)), n.Parents...)
		out.Nodes[id] = &cp
		out.order = append(out.order, id)
	}
	for k, e := range g.Edges {
		cp := *e
		cp.Metadata = copyTags(e.Metadata)
		out.Edges[k] = &cp
	}
	out.RootNodes = append(out.RootNodes, g.RootNodes...)
	out.LeafNodes = append(out.LeafNodes, g.LeafNodes...)
	out.CriticalPath = append(out.CriticalPath, g.CriticalPath...)
	out.TotalDuration = g.TotalDuration
	return out
}

// Validate checks the structural invariants: every edge joins existing nodes
// and every child link is mirrored by a parent link and backed by an edge.
func (g *DependencyGraph) Validate() error {
	for _, key := range g.EdgeKeys() {
		edge := g.Edges[key]
		from, ok := g.Nodes[edge.From]
		if !ok {
			return fmt.Errorf("%w: edge %s starts at %s", ErrMissingNode, key, edge.From)
		}
		to, ok := g.Nodes[edge.To]
		if !ok {
			return fmt.Errorf("%w: edge %s ends at %s", ErrMissingNode, key, edge.To)
		}
		if !contains(from.Children, edge.To) || !contains(to.Parents, edge.From) {
			return fmt.Errorf("%w: edge %s is not linked on both ends", ErrInconsistentLink, key)
		}
	}

	for _, id := range g.NodeIDs() {
		node := g.Nodes[id]
		for _, childID := range node.Children {
			child, ok := g.Nodes[childID]
			if !ok {
				return fmt.Errorf("%w: %s lists child %s", ErrMissingNode, id, childID)
			}
			if !contains(child.Parents, id) {
				return fmt.Errorf("%w: %s lists child %s without back-reference", ErrInconsistentLink, id, childID)
			}
			if _, ok := g.Edges[EdgeKey(id, childID)]; !ok {
				return fmt.Errorf("%w: no edge backs %s -> %s", ErrInconsistentLink, id, childID)
			}
		}
		for _, parentID := range node.Parents {
			parent, ok := g.Nodes[parentID]
			if !ok {
				return fmt.Errorf("%w: %s lists parent %s", ErrMissingNode, id, parentID)
			}
			if !contains(parent.Children, id) {
				return fmt.Errorf("%w: %s lists parent %s without back-reference", ErrInconsistentLink, id, parentID)
			}
		}
	}

	for _, id := range g.CriticalPath {
		if _, ok := g.Nodes[id]; !ok {
			return fmt.Errorf("%w: critical path references %s", ErrMissingNode, id)
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func copyTags(m map[string]TagValue) map[string]TagValue {
	if m == nil {
		return nil
	}
	out := make(map[string]TagValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
