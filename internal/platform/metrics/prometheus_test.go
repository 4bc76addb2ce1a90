package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	rec := NewRecorder(func() int { return 3 })
	ctx := context.Background()
	rec.Observe(ctx, "add", true, time.Millisecond)
	rec.Observe(ctx, "add", true, time.Millisecond)
	rec.Observe(ctx, "add", false, time.Millisecond)

	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	var size float64
	var histograms int
	for _, mf := range families {
		switch mf.GetName() {
		case "bandkeeper_commands_total":
			for _, m := range mf.GetMetric() {
				labels := map[string]string{}
				for _, lp := range m.GetLabel() {
					labels[lp.GetName()] = lp.GetValue()
				}
				counts[labels["command"]+"/"+labels["outcome"]] = m.GetCounter().GetValue()
			}
		case "bandkeeper_collection_bands":
			size = mf.GetMetric()[0].GetGauge().GetValue()
		case "bandkeeper_command_duration_seconds":
			histograms = len(mf.GetMetric())
			if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
				t.Fatalf("expected 3 latency samples, got %d", got)
			}
		}
	}
	if counts["add/success"] != 2 || counts["add/error"] != 1 {
		t.Fatalf("unexpected counters %v", counts)
	}
	if size != 3 || histograms != 1 {
		t.Fatalf("unexpected gauge %v or histogram count %d", size, histograms)
	}
}

func TestRecorderHandlerExposesMetrics(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Observe(context.Background(), "show", true, 2*time.Millisecond)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	for _, want := range []string{
		`bandkeeper_commands_total{command="show",outcome="success"} 1`,
		"bandkeeper_command_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
	if strings.Contains(text, "bandkeeper_collection_bands") {
		t.Fatalf("size gauge must be absent without a size func")
	}
}
