package core

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

const durationKey = "duration_ms"

var expvarSeq atomic.Uint64

// ExpvarMetricsRecorder publishes an expvar.Map keyed by command. Each entry
// is itself a map of "success" and "error" counts plus the summed
// duration_ms.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex // serializes creation of per-command maps
	vars *expvar.Map
}

// ExpvarMetricsSnapshot is a plain copy of the published counters.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name. expvar names are
// process-global, so an empty name picks a fresh numbered one.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("bandkeeper_commands_%d", expvarSeq.Add(1))
	}
	vars := new(expvar.Map).Init()
	expvar.Publish(name, vars)
	return &ExpvarMetricsRecorder{name: name, vars: vars}
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, command string, success bool, duration time.Duration) {
	if command == "" {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	counters := r.countersFor(command)
	counters.Add(outcome, 1)
	counters.AddFloat(durationKey, float64(duration)/float64(time.Millisecond))
}

func (r *ExpvarMetricsRecorder) countersFor(command string) *expvar.Map {
	if m, ok := r.vars.Get(command).(*expvar.Map); ok {
		return m
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.vars.Get(command).(*expvar.Map); ok {
		return m
	}
	m := new(expvar.Map).Init()
	r.vars.Set(command, m)
	return m
}

// Snapshot copies the current counters.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	snap := ExpvarMetricsSnapshot{
		DurationsMS: make(map[string]float64),
		Results:     make(map[string]map[string]int64),
		RecordedAt:  time.Now().UTC(),
	}
	r.vars.Do(func(cmd expvar.KeyValue) {
		counters, ok := cmd.Value.(*expvar.Map)
		if !ok {
			return
		}
		outcomes := make(map[string]int64, 2)
		counters.Do(func(kv expvar.KeyValue) {
			switch v := kv.Value.(type) {
			case *expvar.Float:
				snap.DurationsMS[cmd.Key] = v.Value()
			case *expvar.Int:
				outcomes[kv.Key] = v.Value()
			}
		})
		snap.Results[cmd.Key] = outcomes
	})
	return snap
}

// MultiMetricsRecorder fans one observation out to several recorders.
type MultiMetricsRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiMetricsRecorder) Observe(ctx context.Context, command string, success bool, duration time.Duration) {
	for _, rec := range m {
		rec.Observe(ctx, command, success, duration)
	}
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Command    string    `json:"command"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer appends finished spans as JSON lines to a writer and keeps
// them in memory.
type JSONTraceTracer struct {
	now func() time.Time

	mu      sync.Mutex
	w       io.Writer
	entries []JSONTraceEntry
}

// NewJSONTracer writes spans to w. A nil writer only retains them.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	return &JSONTraceTracer{w: w, now: func() time.Time { return time.Now().UTC() }}
}

// Entries returns the spans finished so far.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, command string) (context.Context, TraceSpan) {
	return ctx, jsonSpan{tracer: t, command: command, started: t.now()}
}

func (t *JSONTraceTracer) record(entry JSONTraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if t.w == nil {
		return
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = t.w.Write(append(line, '\n'))
}

type jsonSpan struct {
	tracer  *JSONTraceTracer
	command string
	started time.Time
}

func (s jsonSpan) End(err error) {
	ended := s.tracer.now()
	entry := JSONTraceEntry{
		Command:    s.command,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status, entry.Error = "error", err.Error()
	}
	s.tracer.record(entry)
}
