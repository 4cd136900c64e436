package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracelens/trace-analyzer/pkg/analysis"
	"github.com/tracelens/trace-analyzer/pkg/graph"
	"github.com/tracelens/trace-analyzer/pkg/model"
	"github.com/tracelens/trace-analyzer/pkg/output"
	"github.com/tracelens/trace-analyzer/pkg/risk"
	"github.com/tracelens/trace-analyzer/pkg/scanner"
	"github.com/tracelens/trace-analyzer/pkg/traceio"
)

type scanInputs struct {
	vulns   string
	deps    string
	history string
	traces  []string
}

func newScanCmd() *cobra.Command {
	var in scanInputs

	cmd := &cobra.Command{
		Use:   "scan --vulns <file>",
		Short: "Assess how exploitable known vulnerabilities are at runtime",
		Long: `Matches dependencies against a vulnerability list and scores each match by
whether the traced application reaches the package and ran it recently.

Without --traces every vulnerability is reported as a theoretical risk.
Without --deps the packages named in the vulnerability list are scanned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, in)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in.vulns, "vulns", "", "Vulnerability matches (JSON or YAML)")
	flags.StringVar(&in.deps, "deps", "", "Runtime dependencies (JSON or YAML)")
	flags.StringVar(&in.history, "history", "", "Recent execution contexts (JSON or YAML)")
	flags.StringSliceVar(&in.traces, "traces", nil, "Trace files or directories to search for execution paths")
	flags.Bool("theoretical", false, "Include theoretical risks")
	flags.String("min-severity", "", "Only report risks at or above this severity")
	flags.Int("max-results", 0, "Report at most this many risks (0 = all)")
	flags.Duration("window", risk.DefaultExposureWindow, "How recent an execution counts as runtime exposure")
	flags.Int("cache-size", 1024, "Entries in the vulnerability match cache")
	flags.Duration("cache-ttl", time.Hour, "Lifetime of cached vulnerability matches")
	_ = cmd.MarkFlagRequired("vulns")

	return cmd
}

func runScan(cmd *cobra.Command, in scanInputs) error {
	ctx := cmd.Context()

	vulns, err := traceio.LoadVulnerabilities(in.vulns)
	if err != nil {
		return err
	}
	static := scanner.NewStaticSource(vulns)
	source := scanner.NewCachingSource(static, cfg.Cache.Size, cfg.Cache.TTL)

	deps := static.Packages()
	if in.deps != "" {
		if deps, err = traceio.LoadDependencies(in.deps); err != nil {
			return err
		}
	}

	var history []model.ExecutionContext
	if in.history != "" {
		if history, err = traceio.LoadHistory(in.history); err != nil {
			return err
		}
	}

	var g *model.DependencyGraph
	if len(in.traces) > 0 {
		traces, err := analysis.LoadTraces(ctx, in.traces)
		if err != nil {
			return err
		}
		switch len(traces) {
		case 0:
			return fmt.Errorf("no traces found in %v", in.traces)
		case 1:
			g = graph.BuildFromTrace(&traces[0])
		default:
			g = graph.BuildFromMultipleTraces(traces)
		}
	}

	calc := risk.NewCalculator()
	if cfg.Scan.ExposureWindow > 0 {
		calc = calc.WithExposureWindow(cfg.Scan.ExposureWindow)
	}

	result, err := scanner.New(source, calc).Scan(ctx, deps, g, history, scanner.Options{
		IncludeTheoretical: cfg.Scan.IncludeTheoretical,
		MinSeverity:        model.Severity(cfg.Scan.MinSeverity),
		MaxResults:         cfg.Scan.MaxResults,
	})
	if err != nil {
		return err
	}

	if cfg.JSON {
		return output.WriteJSON(os.Stdout, result)
	}
	output.PrintScanReport(os.Stdout, result)
	return nil
}
