package model

import (
	"strings"
	"time"
)

// SpanStatus is the completion status reported by an instrumented span
type SpanStatus string

const (
	SpanStatusOK      SpanStatus = "ok"
	SpanStatusError   SpanStatus = "error"
	SpanStatusUnset   SpanStatus = "unset"
	SpanStatusTimeout SpanStatus = "timeout"
)

// IsError reports whether the status marks a failed operation.
func (s SpanStatus) IsError() bool {
	switch SpanStatus(strings.ToLower(string(s))) {
	case SpanStatusError, SpanStatusTimeout:
		return true
	}
	return false
}

// SpanLog is a timestamped event attached to a span
type SpanLog struct {
	Timestamp float64             `json:"timestamp" yaml:"timestamp"`
	Fields    map[string]TagValue `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Span represents a single timed operation within a trace.
// Times are in the trace's own unit (microseconds or milliseconds), consistently
// across one trace.
type Span struct {
	TraceID       string              `json:"traceId" yaml:"traceId"`
	SpanID        string              `json:"spanId" yaml:"spanId"`
	ParentSpanID  string              `json:"parentSpanId,omitempty" yaml:"parentSpanId,omitempty"`
	OperationName string              `json:"operationName" yaml:"operationName"`
	StartTime     float64             `json:"startTime" yaml:"startTime"`
	EndTime       *float64            `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Duration      *float64            `json:"duration,omitempty" yaml:"duration,omitempty"`
	Tags          map[string]TagValue `json:"tags,omitempty" yaml:"tags,omitempty"`
	Logs          []SpanLog           `json:"logs,omitempty" yaml:"logs,omitempty"`
	Status        SpanStatus          `json:"status,omitempty" yaml:"status,omitempty"`
}

// EffectiveDuration returns the reported duration, or one derived from the
// start and end times. Spans with neither report zero.
func (s *Span) EffectiveDuration() float64 {
	if s.Duration != nil {
		return *s.Duration
	}
	if s.EndTime != nil && *s.EndTime >= s.StartTime {
		return *s.EndTime - s.StartTime
	}
	return 0
}

// EffectiveEndTime returns the reported end time, or start plus duration.
func (s *Span) EffectiveEndTime() float64 {
	if s.EndTime != nil {
		return *s.EndTime
	}
	return s.StartTime + s.EffectiveDuration()
}

// Trace is the set of spans produced by one request or execution
type Trace struct {
	TraceID   string   `json:"traceId" yaml:"traceId"`
	Spans     []Span   `json:"spans" yaml:"spans"`
	StartTime float64  `json:"startTime" yaml:"startTime"`
	EndTime   *float64 `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Duration  *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	RootSpan  string   `json:"rootSpan,omitempty" yaml:"rootSpan,omitempty"`
}

// ReportedDuration returns the trace's own duration. It is not recomputed
// from the spans: a trace without a duration or end time reports zero.
func (t *Trace) ReportedDuration() float64 {
	if t.Duration != nil {
		return *t.Duration
	}
	if t.EndTime != nil && *t.EndTime >= t.StartTime {
		return *t.EndTime - t.StartTime
	}
	return 0
}

// Float returns a pointer to v, for populating optional span and trace times.
func Float(v float64) *float64 {
	return &v
}

// ExecutionContext is recent runtime telemetry for one trace, as reported by
// the ingestion side.
type ExecutionContext struct {
	TraceID        string    `json:"traceId" yaml:"traceId"`
	SpanIDs        []string  `json:"spanIds" yaml:"spanIds"`
	OperationNames []string  `json:"operationNames" yaml:"operationNames"`
	Frequency      int       `json:"frequency" yaml:"frequency"`
	LastSeen       time.Time `json:"lastSeen" yaml:"lastSeen"`
}
