package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/tracelens/trace-analyzer/pkg/analysis"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

// maxListed bounds how many blocking paths and risks a console report shows
const maxListed = 10

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintAnalysisReport prints a nicely formatted analysis report with colors
func PrintAnalysisReport(w io.Writer, result *model.AnalysisResult) {
	g := result.Graph
	summary := analysis.Summarize(g)

	// Header
	bold.Fprintln(w, "Trace Analysis Report")
	bold.Fprintln(w, "=====================")
	fmt.Fprintf(w, "Analysis: %s\n", result.AnalysisID)
	fmt.Fprintf(w, "Graph: %d nodes, %d edges, depth %d\n", summary.NodeCount, summary.EdgeCount, summary.Depth)
	fmt.Fprintf(w, "Total duration: %.2f (avg node %.2f, max node %.2f)\n",
		g.TotalDuration, summary.AverageNodeDuration, summary.MaxNodeDuration)

	o := result.Optimization
	if len(o.Optimizations) > 0 {
		cyan.Fprintf(w, "Optimized: %d -> %d nodes, %d -> %d edges (%s)\n",
			o.OriginalNodeCount, o.OptimizedNodeCount, o.OriginalEdgeCount, o.OptimizedEdgeCount,
			strings.Join(o.Optimizations, "; "))
	}
	fmt.Fprintln(w)

	// Critical path
	bold.Fprintln(w, "CRITICAL PATH:")
	if len(g.CriticalPath) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for _, id := range g.CriticalPath {
		node := g.Nodes[id]
		fmt.Fprintf(w, "  %s ", node.Name)
		cyan.Fprintf(w, "(%.2f)\n", node.Duration)
	}
	fmt.Fprintln(w)

	// Impact with color based on potential
	p := result.PerformanceImpact
	bold.Fprintln(w, "PERFORMANCE IMPACT:")
	fmt.Fprintf(w, "  Critical path:   %6.2f%%\n", p.CriticalPathImpact)
	fmt.Fprintf(w, "  Bottlenecks:     %6.2f%%\n", p.BottleneckImpact)
	fmt.Fprintf(w, "  Parallelizable:  %6.2f%%\n", p.ParallelizationOpportunity)
	potentialColor := green
	if p.TotalOptimizationPotential >= 20 {
		potentialColor = yellow
	}
	if p.TotalOptimizationPotential >= 50 {
		potentialColor = red
	}
	potentialColor.Fprintf(w, "  Potential:       %6.2f%%\n", p.TotalOptimizationPotential)
	fmt.Fprintln(w)

	// Blocking paths
	if len(result.BlockingPaths) == 0 {
		green.Fprintln(w, "No blocking paths above the threshold")
	} else {
		red.Fprintf(w, "BLOCKING PATHS (%d):\n", len(result.BlockingPaths))
		for i, bp := range result.BlockingPaths {
			if i == maxListed {
				fmt.Fprintf(w, "  ... %d more\n", len(result.BlockingPaths)-maxListed)
				break
			}
			yellow.Fprintf(w, "  %5.1f%% ", bp.ImpactPercentage)
			fmt.Fprintf(w, "%s\n", pathNames(g, bp.Path))
			for _, b := range bp.Bottlenecks {
				cyan.Fprintf(w, "    %s [%s] %.1f%%\n", b.Name, b.Type, b.ImpactPercentage)
			}
		}
	}

	if len(result.Cycles) > 0 {
		fmt.Fprintln(w)
		yellow.Fprintf(w, "CYCLES (%d):\n", len(result.Cycles))
		for _, cycle := range result.Cycles {
			fmt.Fprintf(w, "  %s\n", strings.Join(cycle, " <-> "))
		}
	}

	if len(result.Recommendations) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "RECOMMENDATIONS:")
		for _, r := range result.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Processed in %s\n", result.ProcessingTime)
}

func pathNames(g *model.DependencyGraph, path []string) string {
	names := make([]string, len(path))
	for i, id := range path {
		if node, ok := g.Nodes[id]; ok {
			names[i] = node.Name
		} else {
			names[i] = id
		}
	}
	return strings.Join(names, " -> ")
}

// PrintScanReport prints a security scan result with colored risk levels
func PrintScanReport(w io.Writer, result *model.SecurityScanResult) {
	bold.Fprintln(w, "Runtime Security Scan")
	bold.Fprintln(w, "=====================")
	fmt.Fprintf(w, "Scan: %s at %s\n", result.ScanID, result.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Dependencies scanned: %d\n", result.DependenciesScanned)
	fmt.Fprintf(w, "Vulnerabilities found: %d\n", result.VulnerabilitiesFound)

	s := result.Summary
	fmt.Fprintf(w, "Severity: ")
	red.Fprintf(w, "%d critical ", s.Critical)
	red.Fprintf(w, "%d high ", s.High)
	yellow.Fprintf(w, "%d medium ", s.Medium)
	fmt.Fprintf(w, "%d low\n", s.Low)
	fmt.Fprintln(w)

	if len(result.RuntimeRisks) == 0 {
		green.Fprintln(w, "✓ No runtime risks matched the filters")
	}
	for i, r := range result.RuntimeRisks {
		if i == maxListed {
			fmt.Fprintf(w, "... %d more\n", len(result.RuntimeRisks)-maxListed)
			break
		}
		levelColor(r.RiskLevel).Fprintf(w, "%-11s ", r.RiskLevel)
		fmt.Fprintf(w, "%s in %s (%s, impact %d)\n", r.CVEID, r.PackageName, r.Severity, r.ImpactScore)
		for _, path := range r.ExecutionPaths {
			cyan.Fprintf(w, "    %s\n", path)
		}
		if len(r.Recommendations) > 0 {
			fmt.Fprintf(w, "    -> %s\n", r.Recommendations[0])
		}
	}

	fmt.Fprintln(w)
	summaryColor := green
	if s.ActiveRisks > 0 {
		summaryColor = red
	}
	summaryColor.Fprintf(w, "Summary: %d active or likely, %d theoretical (%s)\n",
		s.ActiveRisks, s.TheoreticalRisks, result.ProcessingTime)
}

func levelColor(level model.RiskLevel) *color.Color {
	switch level {
	case model.RiskActive:
		return red
	case model.RiskLikely:
		return yellow
	case model.RiskPossible:
		return cyan
	}
	return green
}
