package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tracelens/trace-analyzer/pkg/analysis"
	"github.com/tracelens/trace-analyzer/pkg/output"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <trace file or directory>...",
		Short: "Analyze one trace, or merge and analyze several",
		Long: `Builds a dependency graph from the given traces, optimizes it, and reports
the critical path, blocking paths, bottlenecks and optimization potential.

A single trace is analyzed on its own. Several traces, from one file or many,
are merged into one graph first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			single, multi := analysisOptions(cfg)
			runner := analysis.NewRunner(args, analysis.NewEngine(), single, multi)

			result, err := runner.Run(cmd.Context(), "analyze command")
			if err != nil {
				return err
			}

			if cfg.JSON {
				return output.WriteJSON(os.Stdout, result)
			}
			output.PrintAnalysisReport(os.Stdout, result)
			return nil
		},
	}
	addAnalysisFlags(cmd)
	return cmd
}
