package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tracelens/trace-analyzer/pkg/finder"
	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
	"github.com/tracelens/trace-analyzer/pkg/traceio"
)

// ErrNoTraces is returned when a run finds no trace to analyze
var ErrNoTraces = errors.New("no traces found")

// Runner loads the traces under a set of files or directories and analyzes
// them, picking the single or multi-trace defaults by how many it found
type Runner struct {
	paths  []string
	engine *Engine
	single Options
	multi  Options
	mu     sync.Mutex // Prevent concurrent analysis runs
}

// NewRunner creates a runner for trace files or directories
func NewRunner(paths []string, engine *Engine, single, multi Options) *Runner {
	return &Runner{
		paths:  paths,
		engine: engine,
		single: single,
		multi:  multi,
	}
}

// Run reloads the traces and analyzes them. reason is only logged.
func (r *Runner) Run(ctx context.Context, reason string) (*model.AnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logging.InfoContext(ctx, "Starting analysis", "reason", reason, "paths", len(r.paths))

	traces, err := LoadTraces(ctx, r.paths)
	if err != nil {
		return nil, err
	}
	switch len(traces) {
	case 0:
		return nil, fmt.Errorf("%s: %w", strings.Join(r.paths, ", "), ErrNoTraces)
	case 1:
		return r.engine.AnalyzeTrace(ctx, &traces[0], r.single)
	default:
		return r.engine.AnalyzeMultipleTraces(ctx, traces, r.multi)
	}
}

// LoadTraces reads every trace file found under paths, in path order
func LoadTraces(ctx context.Context, paths []string) ([]model.Trace, error) {
	var files []string
	for _, path := range paths {
		found, err := finder.FindTraceFiles(path)
		if err != nil {
			return nil, fmt.Errorf("finding trace files: %w", err)
		}
		files = append(files, found...)
	}

	traces, err := traceio.LoadTraceFiles(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("loading traces: %w", err)
	}
	logging.DebugContext(ctx, "Loaded traces", "files", len(files), "traces", len(traces))
	return traces, nil
}
