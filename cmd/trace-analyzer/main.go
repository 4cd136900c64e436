package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracelens/trace-analyzer/pkg/analysis"
	"github.com/tracelens/trace-analyzer/pkg/config"
	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/telemetry"
)

var version = "dev"

var (
	configPath string
	cfg        *config.Config
	shutdown   telemetry.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:           "trace-analyzer",
	Short:         "Find blocking paths and runtime security risks in distributed traces",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Flags(), configPath)
		if err != nil {
			return err
		}

		logging.Configure(os.Stderr, logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt), false)

		// Spans go to stderr next to the logs, keeping stdout for results
		var exportTo io.Writer
		if cfg.OtelStdout {
			exportTo = os.Stderr
		}
		shutdown, err = telemetry.Init(exportTo, version)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdown == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	flags.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	flags.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	flags.Bool("json", false, "Write results as JSON instead of a console report")
	flags.Bool("otel-stdout", false, "Export the analyzer's own spans to stderr")

	rootCmd.AddCommand(newAnalyzeCmd(), newScanCmd(), newWatchCmd())
}

// addAnalysisFlags registers the flags shared by analyze and watch
func addAnalysisFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Float64("threshold", 0.05, "Minimum blocking impact (fraction of total duration) for a single trace")
	flags.Float64("multi-threshold", 0.03, "Minimum blocking impact when several traces are merged")
	flags.Int("max-nodes", 100, "Node budget after optimization for a single trace (0 = unbounded)")
	flags.Int("multi-max-nodes", 200, "Node budget after optimization for merged traces (0 = unbounded)")
	flags.Bool("optimize", true, "Optimize the graph before path analysis")
}

// analysisOptions derives the single and multi-trace options from the config
func analysisOptions(c *config.Config) (single, multi analysis.Options) {
	single = analysis.SingleTraceOptions()
	single.Optimize = c.Analysis.Optimize
	single.MaxNodes = c.Analysis.MaxNodes
	single.BlockingThreshold = c.Analysis.Threshold

	multi = analysis.MultiTraceOptions()
	multi.Optimize = c.Analysis.Optimize
	multi.MaxNodes = c.Analysis.MultiMaxNodes
	multi.BlockingThreshold = c.Analysis.MultiThreshold
	return single, multi
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
