package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newFlagSet() *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.Float64("threshold", 0.05, "")
	f.Int("max-nodes", 100, "")
	f.Bool("optimize", true, "")
	f.String("min-severity", "", "")
	f.Duration("cache-ttl", time.Hour, "")
	f.Bool("json", false, "")
	f.String("unrelated", "x", "")
	return f
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Analysis.Threshold != 0.05 || cfg.Analysis.MultiThreshold != 0.03 {
		t.Errorf("Unexpected thresholds %+v", cfg.Analysis)
	}
	if cfg.Analysis.MaxNodes != 100 || cfg.Analysis.MultiMaxNodes != 200 {
		t.Errorf("Unexpected max nodes %+v", cfg.Analysis)
	}
	if !cfg.Analysis.Optimize {
		t.Error("Expected optimization enabled by default")
	}
	if cfg.Scan.ExposureWindow != 7*24*time.Hour {
		t.Errorf("Expected a 7 day exposure window, got %v", cfg.Scan.ExposureWindow)
	}
	if cfg.Cache.Size != 1024 || cfg.Cache.TTL != time.Hour {
		t.Errorf("Unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond || cfg.Watch.MaxWait != 5*time.Second {
		t.Errorf("Unexpected watch config %+v", cfg.Watch)
	}
}

func TestLoad_FileEnvAndFlagsLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	content := `
json = true

[analysis]
threshold = 0.2
maxnodes = 40

[scan]
minseverity = "MEDIUM"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TRACE_ANALYZER_ANALYSIS_MAXNODES", "60")
	t.Setenv("TRACE_ANALYZER_SCAN_MAXRESULTS", "7")

	f := newFlagSet()
	if err := f.Parse([]string{"--min-severity=HIGH", "--cache-ttl=30s"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f, path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Analysis.Threshold != 0.2 {
		t.Errorf("Expected file threshold 0.2, got %v", cfg.Analysis.Threshold)
	}
	if cfg.Analysis.MaxNodes != 60 {
		t.Errorf("Expected env to override file max nodes, got %d", cfg.Analysis.MaxNodes)
	}
	if cfg.Scan.MaxResults != 7 {
		t.Errorf("Expected env max results 7, got %d", cfg.Scan.MaxResults)
	}
	if cfg.Scan.MinSeverity != "HIGH" {
		t.Errorf("Expected flag to override file severity, got %q", cfg.Scan.MinSeverity)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Expected flag cache TTL 30s, got %v", cfg.Cache.TTL)
	}
	if !cfg.JSON {
		t.Error("Expected json from file to survive an unchanged flag")
	}
	if !cfg.Analysis.Optimize {
		t.Error("Expected unchanged optimize flag to keep the default")
	}
}

func TestLoad_FlagDisablesOptimize(t *testing.T) {
	f := newFlagSet()
	if err := f.Parse([]string{"--optimize=false", "--max-nodes=10"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Analysis.Optimize {
		t.Error("Expected --optimize=false to disable optimization")
	}
	if cfg.Analysis.MaxNodes != 10 {
		t.Errorf("Expected max nodes 10, got %d", cfg.Analysis.MaxNodes)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(nil, filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected an error for a missing explicit config file")
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	t.Setenv("TRACE_ANALYZER_ANALYSIS_THRESHOLD", "1.5")
	if _, err := Load(nil, ""); err == nil {
		t.Error("Expected an error for a threshold above 1")
	}
}
