package model

import (
	"strings"
	"time"
)

// Severity is the CVSS-derived severity of a vulnerability
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities from LOW (1) to CRITICAL (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch Severity(strings.ToUpper(string(s))) {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// RiskLevel is the exploitability tier combining severity with runtime reachability
type RiskLevel string

const (
	RiskTheoretical RiskLevel = "THEORETICAL" // Neither reachable nor recently executed
	RiskPossible    RiskLevel = "POSSIBLE"    // Reachable or recently executed, not both
	RiskLikely      RiskLevel = "LIKELY"      // Both, with MEDIUM/LOW severity
	RiskActive      RiskLevel = "ACTIVE"      // Both, with HIGH/CRITICAL severity
)

// VulnerabilityMatch is a CVE matched against a dependency by the external matcher
type VulnerabilityMatch struct {
	CVEID           string   `json:"cveId" yaml:"cveId"`
	PackageName     string   `json:"packageName" yaml:"packageName"`
	Severity        Severity `json:"severity" yaml:"severity"`
	Score           float64  `json:"score" yaml:"score"`                     // CVSS base score, 0-10
	MatchConfidence float64  `json:"matchConfidence" yaml:"matchConfidence"` // 0-1
	FixedVersions   []string `json:"fixedVersions" yaml:"fixedVersions"`
}

// RuntimeDependency is a package observed in the running application
type RuntimeDependency struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// RuntimeRisk is the runtime exploitability assessment of one vulnerability
type RuntimeRisk struct {
	CVEID           string    `json:"cveId"`
	PackageName     string    `json:"packageName"`
	Severity        Severity  `json:"severity"`
	RuntimeExposure bool      `json:"runtimeExposure"`
	ExecutionPaths  []string  `json:"executionPaths"`
	ImpactScore     int       `json:"impactScore"` // 0-100
	RiskLevel       RiskLevel `json:"riskLevel"`
	Recommendations []string  `json:"recommendations"`
}

// ScanSummary counts risks by severity and by risk level
type ScanSummary struct {
	Critical         int `json:"critical"`
	High             int `json:"high"`
	Medium           int `json:"medium"`
	Low              int `json:"low"`
	ActiveRisks      int `json:"activeRisks"` // ACTIVE or LIKELY
	TheoreticalRisks int `json:"theoreticalRisks"`
}

// SecurityScanResult is the outcome of one runtime security scan
type SecurityScanResult struct {
	ScanID               string        `json:"scanId"`
	Timestamp            time.Time     `json:"timestamp"`
	DependenciesScanned  int           `json:"dependenciesScanned"`
	VulnerabilitiesFound int           `json:"vulnerabilitiesFound"`
	RuntimeRisks         []RuntimeRisk `json:"runtimeRisks"`
	Summary              ScanSummary   `json:"summary"`
	ProcessingTime       time.Duration `json:"processingTime"`
}
