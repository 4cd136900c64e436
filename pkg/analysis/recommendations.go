package analysis

import (
	"fmt"
	"sort"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

const (
	maxRecommendations = 8
	topBottleneckCount = 3

	// Graphs above this size are hard to reason about as a whole
	complexGraphNodes = 100
	// In trace time units; 5 seconds for millisecond traces
	longExecutionDuration = 5000
)

// Recommendations turns analysis figures into prioritized advice. Figure-level
// advice comes first, then the top bottlenecks by impact, then graph-shape
// advice; at most eight entries are returned.
func Recommendations(g *model.DependencyGraph, paths []model.BlockingPath, performance model.PerformanceImpact) []string {
	recommendations := make([]string, 0, maxRecommendations)

	if performance.CriticalPathImpact > 70 {
		recommendations = append(recommendations,
			"Critical path dominates execution time - focus optimization efforts here")
	}
	if performance.BottleneckImpact > 50 {
		recommendations = append(recommendations,
			"Major bottlenecks detected - prioritize the top 3 bottlenecks for optimization")
	}
	if performance.ParallelizationOpportunity > 20 {
		recommendations = append(recommendations,
			"Significant parallelization opportunities available - consider async processing")
	}

	for _, b := range topBottlenecks(paths, topBottleneckCount) {
		if len(b.Recommendations) == 0 {
			continue
		}
		recommendations = append(recommendations, fmt.Sprintf("%s: %s", b.Name, b.Recommendations[0]))
	}

	if len(g.Nodes) > complexGraphNodes {
		recommendations = append(recommendations,
			"Complex execution graph - consider breaking down large operations")
	}
	if g.TotalDuration > longExecutionDuration {
		recommendations = append(recommendations,
			"Long execution time detected - implement performance monitoring alerts")
	}

	if len(recommendations) > maxRecommendations {
		recommendations = recommendations[:maxRecommendations]
	}
	return recommendations
}

// topBottlenecks flattens the bottlenecks of all paths and returns the n with
// the highest impact. Ties keep path order.
func topBottlenecks(paths []model.BlockingPath, n int) []model.Bottleneck {
	var all []model.Bottleneck
	for _, p := range paths {
		all = append(all, p.Bottlenecks...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ImpactPercentage > all[j].ImpactPercentage
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
