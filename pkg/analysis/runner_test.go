package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tracelens/trace-analyzer/pkg/model"
)

func writeTraces(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunner_SingleTrace(t *testing.T) {
	dir := t.TempDir()
	writeTraces(t, filepath.Join(dir, "one.json"), exampleTrace("trace-1"))

	runner := NewRunner([]string{dir}, NewEngine(), SingleTraceOptions(), MultiTraceOptions())
	result, err := runner.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Graph.Nodes) != 4 {
		t.Errorf("Expected 4 nodes, got %d", len(result.Graph.Nodes))
	}
}

func TestRunner_MergesAllFiles(t *testing.T) {
	dir := t.TempDir()
	writeTraces(t, filepath.Join(dir, "a.json"), exampleTrace("trace-1"))
	other := model.Trace{TraceID: "trace-2", Duration: model.Float(50), Spans: []model.Span{
		span("E", "", 0, 50),
	}}
	writeTraces(t, filepath.Join(dir, "b.json"), []model.Trace{other})

	runner := NewRunner([]string{dir}, NewEngine(), SingleTraceOptions(), MultiTraceOptions())
	result, err := runner.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Graph.Nodes) != 5 {
		t.Errorf("Expected 5 merged nodes, got %d", len(result.Graph.Nodes))
	}
	if len(result.Graph.RootNodes) != 2 {
		t.Errorf("Expected roots from both traces, got %v", result.Graph.RootNodes)
	}
}

func TestRunner_NoTraces(t *testing.T) {
	runner := NewRunner([]string{t.TempDir()}, NewEngine(), SingleTraceOptions(), MultiTraceOptions())
	if _, err := runner.Run(context.Background(), "test"); !errors.Is(err, ErrNoTraces) {
		t.Errorf("Expected ErrNoTraces, got %v", err)
	}
}
