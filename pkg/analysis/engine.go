// Package analysis composes graph building, optimization, blocking-path
// detection and impact scoring into a single AnalysisResult per request.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracelens/trace-analyzer/pkg/blocking"
	"github.com/tracelens/trace-analyzer/pkg/cycles"
	"github.com/tracelens/trace-analyzer/pkg/graph"
	"github.com/tracelens/trace-analyzer/pkg/impact"
	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
	"github.com/tracelens/trace-analyzer/pkg/optimizer"
)

const tracerName = "github.com/tracelens/trace-analyzer/pkg/analysis"

// Options configures one analysis run
type Options struct {
	Optimize               bool
	MaxNodes               int     // Passed to the optimizer, 0 means unbounded
	BlockingThreshold      float64 // Minimum blocking impact as a fraction of total duration
	IncludeRecommendations bool
}

// SingleTraceOptions are the defaults for analyzing one trace
func SingleTraceOptions() Options {
	return Options{
		Optimize:               true,
		MaxNodes:               100,
		BlockingThreshold:      0.05,
		IncludeRecommendations: true,
	}
}

// MultiTraceOptions are the defaults for merged traces: a larger node budget
// and a lower threshold, since merging dilutes each path's share
func MultiTraceOptions() Options {
	return Options{
		Optimize:               true,
		MaxNodes:               200,
		BlockingThreshold:      0.03,
		IncludeRecommendations: true,
	}
}

// Engine runs analyses. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	tracer trace.Tracer
}

// NewEngine creates an engine reporting its phases to the global tracer provider
func NewEngine() *Engine {
	return &Engine{tracer: otel.Tracer(tracerName)}
}

// AnalyzeTrace analyzes a single trace
func (e *Engine) AnalyzeTrace(ctx context.Context, tr *model.Trace, opts Options) (*model.AnalysisResult, error) {
	ctx, span := e.tracer.Start(ctx, "AnalyzeTrace", trace.WithAttributes(
		attribute.String("trace.id", tr.TraceID),
		attribute.Int("trace.spans", len(tr.Spans)),
	))
	defer span.End()

	return e.run(ctx, span, opts, func() *model.DependencyGraph {
		return graph.BuildFromTrace(tr)
	})
}

// AnalyzeMultipleTraces merges the traces into one graph and analyzes it
func (e *Engine) AnalyzeMultipleTraces(ctx context.Context, traces []model.Trace, opts Options) (*model.AnalysisResult, error) {
	ctx, span := e.tracer.Start(ctx, "AnalyzeMultipleTraces", trace.WithAttributes(
		attribute.Int("traces", len(traces)),
	))
	defer span.End()

	return e.run(ctx, span, opts, func() *model.DependencyGraph {
		return graph.BuildFromMultipleTraces(traces)
	})
}

func (e *Engine) run(ctx context.Context, span trace.Span, opts Options, build func() *model.DependencyGraph) (*model.AnalysisResult, error) {
	result, err := e.analyze(ctx, opts, build)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("analysis.id", result.AnalysisID),
		attribute.Int("graph.nodes", len(result.Graph.Nodes)),
		attribute.Int("blocking_paths", len(result.BlockingPaths)),
	)
	return result, nil
}

func (e *Engine) analyze(ctx context.Context, opts Options, build func() *model.DependencyGraph) (*model.AnalysisResult, error) {
	start := time.Now()
	id := uuid.NewString()
	ctx = logging.WithAnalysisID(ctx, id)

	logging.DebugContext(ctx, "Starting analysis",
		"optimize", opts.Optimize,
		"maxNodes", opts.MaxNodes,
		"threshold", opts.BlockingThreshold)

	// Phase 1: build
	var g *model.DependencyGraph
	e.phase(ctx, "build", func() {
		g = build()
	})
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("graph construction produced an inconsistent graph: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 2: optimize
	optimization := model.OptimizationResult{
		OriginalNodeCount:  len(g.Nodes),
		OptimizedNodeCount: len(g.Nodes),
		OriginalEdgeCount:  len(g.Edges),
		OptimizedEdgeCount: len(g.Edges),
		Optimizations:      make([]string, 0),
	}
	if opts.Optimize {
		e.phase(ctx, "optimize", func() {
			optimizerOpts := optimizer.DefaultOptions()
			optimizerOpts.MaxNodes = opts.MaxNodes
			g, optimization = optimizer.Optimize(g, optimizerOpts)
		})
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("optimization produced an inconsistent graph: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	// Phase 3: cycles, only possible after merging disagreeing traces
	var spanCycles [][]string
	e.phase(ctx, "cycles", func() {
		spanCycles = cycles.FindSpanCycles(g)
	})
	if len(spanCycles) > 0 {
		logging.WarnContext(ctx, "Graph contains cycles, path results are truncated at revisits",
			"cycles", len(spanCycles))
	}

	// Phase 4: blocking paths and impact
	var paths []model.BlockingPath
	e.phase(ctx, "blocking_paths", func() {
		paths = blocking.IdentifyBlockingPaths(g, opts.BlockingThreshold)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var performance model.PerformanceImpact
	e.phase(ctx, "impact", func() {
		performance = impact.CalculatePerformanceImpact(g)
	})

	recommendations := make([]string, 0)
	if opts.IncludeRecommendations {
		recommendations = Recommendations(g, paths, performance)
	}

	result := &model.AnalysisResult{
		AnalysisID:        id,
		Graph:             g,
		BlockingPaths:     paths,
		PerformanceImpact: performance,
		Optimization:      optimization,
		Cycles:            spanCycles,
		ProcessingTime:    time.Since(start),
		Recommendations:   recommendations,
	}

	logging.InfoContext(ctx, "Analysis complete",
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"blockingPaths", len(paths),
		"potential", performance.TotalOptimizationPotential,
		"elapsed", result.ProcessingTime)
	return result, nil
}

// phase runs fn inside a child span and logs how long it took
func (e *Engine) phase(ctx context.Context, name string, fn func()) {
	_, span := e.tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	fn()
	logging.TraceContext(ctx, "Phase finished", "phase", name, "elapsed", time.Since(start))
}
