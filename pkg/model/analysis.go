package model

import "time"

// BottleneckType classifies where a slow node spends its time
type BottleneckType string

const (
	BottleneckCPU      BottleneckType = "cpu"
	BottleneckIO       BottleneckType = "io"
	BottleneckNetwork  BottleneckType = "network"
	BottleneckDatabase BottleneckType = "database"
	BottleneckExternal BottleneckType = "external"
)

// Bottleneck is a single node whose own duration is a significant share of
// the graph's total duration
type Bottleneck struct {
	NodeID           string         `json:"nodeId"`
	Name             string         `json:"name"`
	Duration         float64        `json:"duration"`
	ImpactPercentage float64        `json:"impactPercentage"`
	Type             BottleneckType `json:"type"`
	Recommendations  []string       `json:"recommendations"`
}

// BlockingPath is a root-to-leaf path scored by its blocking edges
type BlockingPath struct {
	Path             []string     `json:"path"`
	TotalDuration    float64      `json:"totalDuration"`    // Sum of node durations
	BlockingDuration float64      `json:"blockingDuration"` // Sum of "blocks" edge weights
	ImpactPercentage float64      `json:"impactPercentage"`
	Bottlenecks      []Bottleneck `json:"bottlenecks"` // Descending impact
}

// PerformanceImpact summarizes how much of a graph's duration is improvable
type PerformanceImpact struct {
	CriticalPathImpact         float64 `json:"criticalPathImpact"`
	BottleneckImpact           float64 `json:"bottleneckImpact"`
	ParallelizationOpportunity float64 `json:"parallelizationOpportunity"`
	TotalOptimizationPotential float64 `json:"totalOptimizationPotential"`
}

// OptimizationResult reports what graph optimization did
type OptimizationResult struct {
	OriginalNodeCount  int           `json:"originalNodeCount"`
	OptimizedNodeCount int           `json:"optimizedNodeCount"`
	OriginalEdgeCount  int           `json:"originalEdgeCount"`
	OptimizedEdgeCount int           `json:"optimizedEdgeCount"`
	ProcessingTime     time.Duration `json:"processingTime"`
	Optimizations      []string      `json:"optimizations"` // Human-readable log, in application order
}

// AnalysisResult is everything derived from one analysis request
type AnalysisResult struct {
	AnalysisID        string             `json:"analysisId"`
	Graph             *DependencyGraph   `json:"graph"`
	BlockingPaths     []BlockingPath     `json:"blockingPaths"`
	PerformanceImpact PerformanceImpact  `json:"performanceImpact"`
	Optimization      OptimizationResult `json:"optimization"`
	Cycles            [][]string         `json:"cycles,omitempty"`
	ProcessingTime    time.Duration      `json:"processingTime"`
	Recommendations   []string           `json:"recommendations"`
}
