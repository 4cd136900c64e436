package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracelens/trace-analyzer/pkg/analysis"
	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/output"
	"github.com/tracelens/trace-analyzer/pkg/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <trace directory>",
		Short: "Re-analyze a trace directory whenever its traces change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args[0])
		},
	}
	addAnalysisFlags(cmd)
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period before re-analyzing")
	cmd.Flags().Duration("max-wait", 5*time.Second, "Longest delay before re-analyzing during a burst of changes")
	return cmd
}

func runWatch(ctx context.Context, dir string) error {
	single, multi := analysisOptions(cfg)
	runner := analysis.NewRunner([]string{dir}, analysis.NewEngine(), single, multi)

	report := func(reason string) {
		result, err := runner.Run(ctx, reason)
		if err != nil {
			logging.Error("Analysis failed", "reason", reason, "error", err)
			return
		}
		if cfg.JSON {
			if err := output.WriteJSON(os.Stdout, result); err != nil {
				logging.Error("Failed to write result", "error", err)
			}
			return
		}
		output.PrintAnalysisReport(os.Stdout, result)
	}

	fw, err := watcher.NewFileWatcher(dir)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), cfg.Watch.Debounce, cfg.Watch.MaxWait)
	debouncer.Start(ctx)

	report("initial analysis")

	for event := range debouncer.Output() {
		changes := watcher.AnalyzeChanges(event)
		if !changes.NeedReload {
			continue
		}
		logging.Info("Trace files changed",
			"changed", len(changes.ChangedFiles),
			"removed", len(changes.RemovedFiles))
		report("traces " + event.Type.String())
	}

	logging.Info("Stopped watching", "path", dir)
	return nil
}
