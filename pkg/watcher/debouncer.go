package watcher

import (
	"context"
	"time"

	"github.com/tracelens/trace-analyzer/pkg/logging"
)

// Debouncer batches rapid file system events to avoid excessive re-analysis.
// A batch is flushed once no event arrived for quietPeriod, or maxWait after
// its first event, whichever comes first.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// batch accumulates paths per change type. A path seen again moves to the
// type of its latest event.
type batch struct {
	latest map[string]ChangeType
	order  []string
}

func newBatch() *batch {
	return &batch{latest: make(map[string]ChangeType)}
}

func (b *batch) add(event ChangeEvent) {
	for _, path := range event.Paths {
		if _, seen := b.latest[path]; !seen {
			b.order = append(b.order, path)
		}
		b.latest[path] = event.Type
	}
}

func (b *batch) empty() bool {
	return len(b.order) == 0
}

// events returns written paths first, then removed paths
func (b *batch) events(now time.Time) []ChangeEvent {
	var out []ChangeEvent
	for _, changeType := range []ChangeType{ChangeTypeTraceWritten, ChangeTypeTraceRemoved} {
		var paths []string
		for _, path := range b.order {
			if b.latest[path] == changeType {
				paths = append(paths, path)
			}
		}
		if len(paths) > 0 {
			out = append(out, ChangeEvent{Type: changeType, Paths: paths, Timestamp: now})
		}
	}
	return out
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		pending  = newBatch()
		quiet    <-chan time.Time
		deadline <-chan time.Time
	)

	flush := func() {
		quiet, deadline = nil, nil
		if pending.empty() {
			return
		}
		logging.Debug("flushing accumulated events", "paths", len(pending.order))
		for _, event := range pending.events(time.Now()) {
			select {
			case d.output <- event:
			case <-ctx.Done():
				return
			}
		}
		pending = newBatch()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			pending.add(event)
			quiet = time.After(d.quietPeriod)
			if deadline == nil {
				deadline = time.After(d.maxWait)
			}

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
