package graph

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

// BuildFromTrace converts the spans of one trace into a dependency graph.
//
// Every span becomes a node and every resolvable parent link a "calls" edge
// weighted with the child's duration. Spans whose parent is missing from the
// trace become additional roots. TotalDuration is the trace's own reported
// duration; it is not recomputed from the spans.
func BuildFromTrace(trace *model.Trace) *model.DependencyGraph {
	g := model.NewDependencyGraph()
	g.TotalDuration = trace.ReportedDuration()
	kept := make(map[string]int, len(trace.Spans))

	for i := range trace.Spans {
		span := &trace.Spans[i]
		node := &model.GraphNode{
			ID:        span.SpanID,
			Type:      model.NodeTypeSpan,
			Name:      span.OperationName,
			StartTime: span.StartTime,
			EndTime:   span.EffectiveEndTime(),
			Duration:  span.EffectiveDuration(),
			Metadata: model.NodeMetadata{
				TraceID: span.TraceID,
				Status:  span.Status,
				Tags:    spanTags(span),
			},
		}
		if !g.AddNode(node) {
			logging.Warn("Duplicate span ID, keeping first occurrence",
				"traceID", trace.TraceID, "spanID", span.SpanID)
			continue
		}
		kept[span.SpanID] = i
	}

	for i := range trace.Spans {
		span := &trace.Spans[i]
		if span.ParentSpanID == "" || kept[span.SpanID] != i {
			continue
		}
		if span.ParentSpanID == span.SpanID {
			logging.Warn("Span lists itself as parent, treating as root",
				"traceID", trace.TraceID, "spanID", span.SpanID)
			continue
		}
		if _, ok := g.Node(span.ParentSpanID); !ok {
			logging.Debug("Unresolvable parent, treating span as root",
				"traceID", trace.TraceID, "spanID", span.SpanID, "parent", span.ParentSpanID)
			continue
		}
		edge := &model.GraphEdge{
			From:   span.ParentSpanID,
			To:     span.SpanID,
			Type:   model.EdgeCalls,
			Weight: span.EffectiveDuration(),
			Metadata: map[string]model.TagValue{
				"relationship": model.StringTag("parent-child"),
			},
		}
		// Both endpoints were checked above
		_ = g.AddEdge(edge)
	}

	g.RefreshEndpoints()
	g.CriticalPath = CriticalPath(g)

	logging.Debug("Built graph from trace",
		"traceID", trace.TraceID,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"roots", len(g.RootNodes))
	return g
}

func spanTags(span *model.Span) map[string]model.TagValue {
	tags := make(map[string]model.TagValue, len(span.Tags))
	for k, v := range span.Tags {
		tags[k] = v
	}
	return tags
}

// BuildFromMultipleTraces builds one graph per trace and merges them.
//
// Nodes seen in several traces get their metadata shallow-merged and their
// time window widened to the earliest start and latest end. Colliding edges
// average their weights. Roots and leaves are the union over all traces.
// TotalDuration is the longest single trace duration, not a sum: the merged
// graph stands for the worst observed run.
func BuildFromMultipleTraces(traces []model.Trace) *model.DependencyGraph {
	graphs := make([]*model.DependencyGraph, len(traces))

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := range traces {
		i := i
		eg.Go(func() error {
			graphs[i] = BuildFromTrace(&traces[i])
			return nil
		})
	}
	// Building a single graph never fails
	_ = eg.Wait()

	merged := model.NewDependencyGraph()
	roots := newOrderedSet()
	leaves := newOrderedSet()

	for i, g := range graphs {
		mergeNodes(merged, g)
		mergeEdges(merged, g)
		roots.addAll(g.RootNodes)
		leaves.addAll(g.LeafNodes)
		if d := traces[i].ReportedDuration(); d > merged.TotalDuration {
			merged.TotalDuration = d
		}
	}

	merged.RootNodes = roots.items
	merged.LeafNodes = leaves.items
	merged.CriticalPath = CriticalPath(merged)

	logging.Debug("Merged trace graphs",
		"traces", len(traces),
		"nodes", len(merged.Nodes),
		"edges", len(merged.Edges),
		"roots", len(merged.RootNodes))
	return merged
}

func mergeNodes(dst, src *model.DependencyGraph) {
	for _, id := range src.NodeIDs() {
		node := src.Nodes[id]
		existing, ok := dst.Node(id)
		if !ok {
			cp := *node
			cp.Metadata = model.NodeMetadata{}
			cp.Metadata.Merge(node.Metadata)
			cp.Children = nil
			cp.Parents = nil
			dst.AddNode(&cp)
			continue
		}

		existing.Metadata.Merge(node.Metadata)
		widened := false
		if node.StartTime < existing.StartTime {
			existing.StartTime = node.StartTime
			widened = true
		}
		if node.EndTime > existing.EndTime {
			existing.EndTime = node.EndTime
			widened = true
		}
		if widened {
			existing.Duration = existing.EndTime - existing.StartTime
		}
	}
}

// mergeEdges walks src's nodes and their children in order so that child
// lists in dst keep the order the spans were first seen in.
func mergeEdges(dst, src *model.DependencyGraph) {
	for _, id := range src.NodeIDs() {
		for _, childID := range src.Nodes[id].Children {
			edge, ok := src.Edge(id, childID)
			if !ok {
				continue
			}
			if existing, ok := dst.Edge(id, childID); ok {
				existing.Weight = (existing.Weight + edge.Weight) / 2
				for k, v := range edge.Metadata {
					existing.Metadata[k] = v
				}
				continue
			}
			cp := *edge
			cp.Metadata = make(map[string]model.TagValue, len(edge.Metadata))
			for k, v := range edge.Metadata {
				cp.Metadata[k] = v
			}
			// Both endpoints were merged by mergeNodes
			_ = dst.AddEdge(&cp)
		}
	}
}

type orderedSet struct {
	items []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: make([]string, 0), seen: make(map[string]bool)}
}

func (s *orderedSet) addAll(ids []string) {
	for _, id := range ids {
		if !s.seen[id] {
			s.seen[id] = true
			s.items = append(s.items, id)
		}
	}
}
