package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	obs.IncCounter("citypulse_ticks_total", 5)
	if got := testutil.ToFloat64(obs.counters["citypulse_ticks_total"]); got != 5 {
		t.Fatalf("expected ticks counter 5, got %f", got)
	}

	obs.IncCounter("citypulse_remote_stats_failures_total", 2)
	if got := testutil.ToFloat64(obs.counters["citypulse_remote_stats_failures_total"]); got != 2 {
		t.Fatalf("expected failure counter 2, got %f", got)
	}

	obs.SetGauge("citypulse_subscribers", 3)
	if got := testutil.ToFloat64(obs.gauges["citypulse_subscribers"]); got != 3 {
		t.Fatalf("expected subscriber gauge 3, got %f", got)
	}

	obs.ObserveLatency("citypulse_source_fetch_seconds", 0.5, "remote_stats")
	obs.ObserveLatency("citypulse_source_fetch_seconds", 0.2, "remote_readings")
	obs.ObserveLatency("citypulse_source_fetch_seconds", 0.1)
	if series := testutil.CollectAndCount(obs.histos["citypulse_source_fetch_seconds"]); series != 2 {
		t.Fatalf("expected one fetch latency series per source, got %d", series)
	}
	obs.ObserveLatency("citypulse_submit_latency_seconds", 0.3)
	if series := testutil.CollectAndCount(obs.histos["citypulse_submit_latency_seconds"]); series != 1 {
		t.Fatalf("expected submit latency to record, got %d series", series)
	}

	obs.RecordDLQ(1, nil, nil)
	if got := testutil.ToFloat64(obs.counters["citypulse_outbox_dlq_total"]); got != 1 {
		t.Fatalf("expected dlq counter 1, got %f", got)
	}

	// unknown names are ignored
	obs.IncCounter("nope", 1)
	obs.SetGauge("nope", 1)
	obs.ObserveLatency("nope", 1)

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Fatalf("gather: n=%d err=%v", n, err)
	}
}

func TestPromObsLogsFields(t *testing.T) {
	var buf bytes.Buffer
	obs := NewPromObs(prometheus.NewRegistry(), slog.New(slog.NewTextHandler(&buf, nil)))

	obs.LogError("fetch_failed", errors.New("boom"), ports.Field{Key: "source", Value: "remote_stats"})
	obs.RecordDLQ(7, &domain.SensorReading{SensorID: "s1"}, errors.New("rejected"))

	out := buf.String()
	for _, want := range []string{"fetch_failed", "source=remote_stats", "err=boom", "entry=7", "sensor=s1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("expected json output, got %s", buf.String())
	}

	if _, err := NewLogger(&buf, "info", "text"); err != nil {
		t.Fatalf("text logger: %v", err)
	}
	if _, err := NewLogger(&buf, "loud", "text"); err == nil {
		t.Fatalf("expected bad level error")
	}
	if _, err := NewLogger(&buf, "info", "xml"); err == nil {
		t.Fatalf("expected bad format error")
	}
}
