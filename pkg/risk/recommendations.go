package risk

import (
	"fmt"
	"strings"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

const maxRecommendations = 6

var urgencyTable = map[model.RiskLevel][]string{
	model.RiskActive: {
		"URGENT: This vulnerability is actively exploitable in your runtime",
		"Consider temporarily disabling affected functionality if possible",
	},
	model.RiskLikely: {
		"HIGH PRIORITY: This vulnerability affects runtime execution paths",
		"Plan immediate update or mitigation",
	},
	model.RiskPossible: {
		"MEDIUM PRIORITY: Potential runtime exposure detected",
		"Include in next maintenance cycle",
	},
	model.RiskTheoretical: {
		"LOW PRIORITY: No runtime exposure detected",
		"Update during regular dependency maintenance",
	},
}

var criticalHardening = []string{
	"Consider implementing additional security controls",
	"Monitor for exploitation attempts",
}

// Recommendations lists what to do about a vulnerability, most important
// first: the fix to apply, urgency for the risk level, example execution
// paths, and hardening advice for CRITICAL severity. At most six entries.
func Recommendations(vuln model.VulnerabilityMatch, level model.RiskLevel, paths []string) []string {
	recs := make([]string, 0, maxRecommendations+2)

	if n := len(vuln.FixedVersions); n > 0 {
		recs = append(recs, fmt.Sprintf("Update %s to version %s or later", vuln.PackageName, vuln.FixedVersions[n-1]))
	} else {
		recs = append(recs, fmt.Sprintf("Monitor %s for security updates", vuln.PackageName))
	}

	recs = append(recs, urgencyTable[level]...)

	if len(paths) > 0 {
		shown := paths[:min(len(paths), 2)]
		recs = append(recs, "Review execution paths: "+strings.Join(shown, ", "))
		if rest := len(paths) - len(shown); rest > 0 {
			recs = append(recs, fmt.Sprintf("And %d other execution paths", rest))
		}
	}

	if normalizeSeverity(vuln.Severity) == model.SeverityCritical {
		recs = append(recs, criticalHardening...)
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}
