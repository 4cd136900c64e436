// Package risk scores how exploitable known vulnerabilities are at runtime,
// using the trace graph to find execution paths that reach the vulnerable
// package and recent telemetry to tell whether it actually runs.
package risk

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

// DefaultExposureWindow is how recent an execution must be to count as
// runtime exposure
const DefaultExposureWindow = 7 * 24 * time.Hour

var severityFactor = map[model.Severity]float64{
	model.SeverityCritical: 1.0,
	model.SeverityHigh:     0.8,
	model.SeverityMedium:   0.6,
	model.SeverityLow:      0.4,
}

// Calculator assesses vulnerabilities against one graph at a time. The clock
// is injectable so exposure windows can be tested.
type Calculator struct {
	now    func() time.Time
	window time.Duration
}

// NewCalculator creates a calculator reading the wall clock
func NewCalculator() *Calculator {
	return &Calculator{now: time.Now, window: DefaultExposureWindow}
}

// WithClock returns a copy of c that reads the given clock
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	cp := *c
	cp.now = now
	return &cp
}

// WithExposureWindow returns a copy of c using a different recency window
func (c *Calculator) WithExposureWindow(window time.Duration) *Calculator {
	cp := *c
	cp.window = window
	return &cp
}

// CalculateRuntimeRisk scores every vulnerability against g and history and
// returns the risks by impact score, highest first. g may be nil, in which
// case no execution paths are found.
func (c *Calculator) CalculateRuntimeRisk(
	vulnerabilities []model.VulnerabilityMatch,
	g *model.DependencyGraph,
	history []model.ExecutionContext,
) []model.RuntimeRisk {
	risks := make([]model.RuntimeRisk, 0, len(vulnerabilities))
	if len(vulnerabilities) == 0 {
		return risks
	}

	var finder *pathFinder
	if g != nil {
		finder = newPathFinder(g)
	}
	cutoff := c.now().Add(-c.window)

	for _, vuln := range vulnerabilities {
		var paths []string
		if finder != nil {
			paths = finder.executionPaths(vuln.PackageName)
		} else {
			paths = make([]string, 0)
		}
		exposed := RuntimeExposure(vuln.PackageName, history, cutoff)
		level := DetermineRiskLevel(vuln.Severity, exposed, len(paths))

		risks = append(risks, model.RuntimeRisk{
			CVEID:           vuln.CVEID,
			PackageName:     vuln.PackageName,
			Severity:        vuln.Severity,
			RuntimeExposure: exposed,
			ExecutionPaths:  paths,
			ImpactScore:     ImpactScore(vuln, len(paths), exposed),
			RiskLevel:       level,
			Recommendations: Recommendations(vuln, level, paths),
		})
		logging.Trace("Assessed vulnerability",
			"cve", vuln.CVEID, "package", vuln.PackageName, "paths", len(paths), "exposed", exposed, "level", level)
	}

	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].ImpactScore > risks[j].ImpactScore
	})
	return risks
}

// CalculateRuntimeRisk scores vulnerabilities with a wall-clock calculator
func CalculateRuntimeRisk(
	vulnerabilities []model.VulnerabilityMatch,
	g *model.DependencyGraph,
	history []model.ExecutionContext,
) []model.RuntimeRisk {
	return NewCalculator().CalculateRuntimeRisk(vulnerabilities, g, history)
}

// RuntimeExposure reports whether any execution seen after cutoff ran an
// operation whose name contains the package name, ignoring case.
func RuntimeExposure(packageName string, history []model.ExecutionContext, cutoff time.Time) bool {
	needle := strings.ToLower(packageName)
	if needle == "" {
		return false
	}
	for _, ctx := range history {
		if !ctx.LastSeen.After(cutoff) {
			continue
		}
		for _, op := range ctx.OperationNames {
			if strings.Contains(strings.ToLower(op), needle) {
				return true
			}
		}
	}
	return false
}

// ImpactScore turns the CVSS score into a 0-100 runtime impact: boosted by
// exposure and by up to five execution paths, then scaled by severity and
// match confidence.
func ImpactScore(vuln model.VulnerabilityMatch, pathCount int, exposed bool) int {
	score := vuln.Score * 10
	if exposed {
		score *= 1.5
	}
	if pathCount > 0 {
		score *= 1 + math.Min(float64(pathCount)*0.1, 0.5)
	}
	score *= severityFactor[normalizeSeverity(vuln.Severity)]
	score *= vuln.MatchConfidence
	return int(math.Round(math.Max(0, math.Min(score, 100))))
}

// DetermineRiskLevel combines runtime exposure with reachability: neither is
// THEORETICAL, one of them POSSIBLE, both ACTIVE for HIGH and CRITICAL
// severities and LIKELY otherwise.
func DetermineRiskLevel(severity model.Severity, exposed bool, pathCount int) model.RiskLevel {
	reachable := pathCount > 0
	switch {
	case !exposed && !reachable:
		return model.RiskTheoretical
	case exposed != reachable:
		return model.RiskPossible
	case severity.Rank() >= model.SeverityHigh.Rank():
		return model.RiskActive
	default:
		return model.RiskLikely
	}
}

func normalizeSeverity(s model.Severity) model.Severity {
	return model.Severity(strings.ToUpper(string(s)))
}
