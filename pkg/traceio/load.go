// Package traceio reads analysis inputs from JSON and YAML files: traces,
// vulnerability matches, runtime dependencies and execution history.
package traceio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/tracelens/trace-analyzer/pkg/logging"
	"github.com/tracelens/trace-analyzer/pkg/model"
)

// LoadTraces reads a file holding one trace or a list of traces
func LoadTraces(path string) ([]model.Trace, error) {
	traces, err := loadList[model.Trace](path)
	if err != nil {
		return nil, err
	}
	for i := range traces {
		if traces[i].TraceID == "" && len(traces[i].Spans) > 0 {
			traces[i].TraceID = traces[i].Spans[0].TraceID
		}
	}
	logging.Debug("Loaded traces", "path", path, "count", len(traces))
	return traces, nil
}

// LoadTraceFiles reads several trace files concurrently. Traces are returned
// in file order; the first failing file fails the whole load.
func LoadTraceFiles(ctx context.Context, paths []string) ([]model.Trace, error) {
	perFile := make([][]model.Trace, len(paths))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			traces, err := LoadTraces(path)
			if err != nil {
				return err
			}
			perFile[i] = traces
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	all := make([]model.Trace, 0)
	for _, traces := range perFile {
		all = append(all, traces...)
	}
	return all, nil
}

// LoadVulnerabilities reads vulnerability matches
func LoadVulnerabilities(path string) ([]model.VulnerabilityMatch, error) {
	return loadList[model.VulnerabilityMatch](path)
}

// LoadDependencies reads the runtime dependency list
func LoadDependencies(path string) ([]model.RuntimeDependency, error) {
	return loadList[model.RuntimeDependency](path)
}

// LoadHistory reads recent execution contexts
func LoadHistory(path string) ([]model.ExecutionContext, error) {
	return loadList[model.ExecutionContext](path)
}

// loadList decodes a file holding either a single T or a list of T. The
// format follows the extension: .yaml and .yml are YAML, anything else JSON.
func loadList[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var items []T
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		items, err = decodeYAML[T](data)
	default:
		items, err = decodeJSON[T](data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return items, nil
}

func decodeJSON[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return make([]T, 0), nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item T
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, err
	}
	return []T{item}, nil
}

func decodeYAML[T any](data []byte) ([]T, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return make([]T, 0), nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		var items []T
		if err := root.Decode(&items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item T
	if err := root.Decode(&item); err != nil {
		return nil, err
	}
	return []T{item}, nil
}
