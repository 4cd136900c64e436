// Package scanner runs runtime security scans: it looks up the
// vulnerabilities of a set of dependencies, scores them against a trace
// graph, and summarizes the outcome.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
	"github.com/tracelens/trace-analyzer/pkg/risk"
)

// ErrNoSource is returned by Scan when the scanner has no match source
var ErrNoSource = errors.New("scanner: no match source configured")

// maxConcurrentLookups bounds parallel calls into the match source
const maxConcurrentLookups = 8

// Options filters the risks reported by a scan
type Options struct {
	IncludeTheoretical bool
	MinSeverity        model.Severity // empty means no minimum
	MaxResults         int            // 0 means unlimited
}

// Scanner combines a match source with the runtime risk calculator
type Scanner struct {
	source MatchSource
	risk   *risk.Calculator
	now    func() time.Time
}

// New creates a scanner. A nil calculator uses the wall clock.
func New(source MatchSource, calc *risk.Calculator) *Scanner {
	if calc == nil {
		calc = risk.NewCalculator()
	}
	return &Scanner{source: source, risk: calc, now: time.Now}
}

// Scan looks up the vulnerabilities of deps and assesses them. With a graph
// each vulnerability is scored for runtime reachability; without one, every
// vulnerability becomes a basic THEORETICAL risk.
func (s *Scanner) Scan(
	ctx context.Context,
	deps []model.RuntimeDependency,
	g *model.DependencyGraph,
	history []model.ExecutionContext,
	opts Options,
) (*model.SecurityScanResult, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	start := time.Now()
	scanID := "scan_" + uuid.NewString()
	ctx = logging.WithAnalysisID(ctx, scanID)
	logging.InfoContext(ctx, "Starting security scan", "dependencies", len(deps))

	vulns, err := s.lookup(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("looking up vulnerabilities: %w", err)
	}

	var risks []model.RuntimeRisk
	if g != nil {
		risks = s.risk.CalculateRuntimeRisk(vulns, g, history)
	} else {
		risks = BasicRisks(vulns)
	}
	risks = ApplyFilters(risks, opts)

	result := &model.SecurityScanResult{
		ScanID:               scanID,
		Timestamp:            s.now(),
		DependenciesScanned:  len(deps),
		VulnerabilitiesFound: len(vulns),
		RuntimeRisks:         risks,
		Summary:              Summarize(risks),
		ProcessingTime:       time.Since(start),
	}

	logging.InfoContext(ctx, "Security scan completed",
		"vulnerabilities", len(vulns),
		"risks", len(risks),
		"elapsed", result.ProcessingTime)
	return result, nil
}

// lookup queries the source for every dependency concurrently, keeping the
// dependency order in the result
func (s *Scanner) lookup(ctx context.Context, deps []model.RuntimeDependency) ([]model.VulnerabilityMatch, error) {
	perDep := make([][]model.VulnerabilityMatch, len(deps))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentLookups)
	for i, dep := range deps {
		i, dep := i, dep
		eg.Go(func() error {
			matches, err := s.source.Matches(ctx, dep)
			if err != nil {
				return fmt.Errorf("%s@%s: %w", dep.Name, dep.Version, err)
			}
			perDep[i] = matches
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	vulns := make([]model.VulnerabilityMatch, 0)
	for _, matches := range perDep {
		vulns = append(vulns, matches...)
	}
	return vulns, nil
}

// BasicRisks converts matches into THEORETICAL risks when no graph is
// available to decide reachability
func BasicRisks(vulns []model.VulnerabilityMatch) []model.RuntimeRisk {
	risks := make([]model.RuntimeRisk, 0, len(vulns))
	for _, v := range vulns {
		score := math.Round(v.Score * 10 * v.MatchConfidence)
		risks = append(risks, model.RuntimeRisk{
			CVEID:           v.CVEID,
			PackageName:     v.PackageName,
			Severity:        v.Severity,
			RuntimeExposure: false,
			ExecutionPaths:  make([]string, 0),
			ImpactScore:     int(math.Max(0, math.Min(score, 100))),
			RiskLevel:       model.RiskTheoretical,
			Recommendations: []string{
				fmt.Sprintf("Update %s to a fixed version", v.PackageName),
				"Monitor for security updates",
				"Review dependency usage in codebase",
			},
		})
	}
	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].ImpactScore > risks[j].ImpactScore
	})
	return risks
}

// ApplyFilters drops THEORETICAL risks unless asked to keep them, then risks
// below the minimum severity, then truncates to MaxResults.
func ApplyFilters(risks []model.RuntimeRisk, opts Options) []model.RuntimeRisk {
	minRank := 0
	if opts.MinSeverity != "" {
		minRank = opts.MinSeverity.Rank()
	}

	filtered := make([]model.RuntimeRisk, 0, len(risks))
	for _, r := range risks {
		if !opts.IncludeTheoretical && r.RiskLevel == model.RiskTheoretical {
			continue
		}
		if r.Severity.Rank() < minRank {
			continue
		}
		filtered = append(filtered, r)
	}
	if opts.MaxResults > 0 && len(filtered) > opts.MaxResults {
		filtered = filtered[:opts.MaxResults]
	}
	return filtered
}

// Summarize counts risks by severity and by risk level. ACTIVE and LIKELY
// both count as active risks.
func Summarize(risks []model.RuntimeRisk) model.ScanSummary {
	var summary model.ScanSummary
	for _, r := range risks {
		switch r.Severity.Rank() {
		case model.SeverityCritical.Rank():
			summary.Critical++
		case model.SeverityHigh.Rank():
			summary.High++
		case model.SeverityMedium.Rank():
			summary.Medium++
		case model.SeverityLow.Rank():
			summary.Low++
		}
		switch r.RiskLevel {
		case model.RiskActive, model.RiskLikely:
			summary.ActiveRisks++
		case model.RiskTheoretical:
			summary.TheoreticalRisks++
		}
	}
	return summary
}

func sortDependencies(deps []model.RuntimeDependency) {
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Name != deps[j].Name {
			return deps[i].Name < deps[j].Name
		}
		return deps[i].Version < deps[j].Version
	})
}
