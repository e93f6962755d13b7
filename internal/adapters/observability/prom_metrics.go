package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

// PromObs implements ports.Observability on top of a Prometheus registry and
// a slog logger. Unknown metric names are ignored.
type PromObs struct {
	log      *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]*prometheus.HistogramVec
}

// NewPromObs registers the dashboard metrics on reg. A nil reg uses the
// default registerer and a nil logger uses slog.Default().
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		"citypulse_ticks_total":                    counter("citypulse_ticks_total", "Poll ticks started."),
		"citypulse_stats_published_total":          counter("citypulse_stats_published_total", "Stats records broadcast to subscribers."),
		"citypulse_subscriber_drops_total":         counter("citypulse_subscriber_drops_total", "Records dropped because a subscriber buffer was full."),
		"citypulse_synthetic_fallbacks_total":      counter("citypulse_synthetic_fallbacks_total", "Ticks that published simulated stats."),
		"citypulse_remote_stats_failures_total":    counter("citypulse_remote_stats_failures_total", "Failed GET /dashboard/stats attempts."),
		"citypulse_remote_readings_failures_total": counter("citypulse_remote_readings_failures_total", "Failed GET /sensor-data attempts."),
		"citypulse_readings_submitted_total":       counter("citypulse_readings_submitted_total", "Operator readings accepted by the API."),
		"citypulse_outbox_dlq_total":               counter("citypulse_outbox_dlq_total", "Operator readings rejected by the API."),
		"citypulse_outbox_dropped_total":           counter("citypulse_outbox_dropped_total", "Operator readings lost to outbox backpressure."),
		"citypulse_stats_sink_failures_total":      counter("citypulse_stats_sink_failures_total", "Failed writes to stats sinks."),
	}
	gauges := map[string]prometheus.Gauge{
		"citypulse_subscribers":           gauge("citypulse_subscribers", "Attached stats subscribers."),
		"citypulse_outbox_queue_length":   gauge("citypulse_outbox_queue_length", "Readings waiting in the outbox queue."),
		"citypulse_outbox_wal_size_bytes": gauge("citypulse_outbox_wal_size_bytes", "Size of the outbox WAL on disk."),
	}
	fetch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citypulse_source_fetch_seconds",
		Help:    "Latency of one fallback level, by source.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"source"})
	submit := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citypulse_submit_latency_seconds",
		Help:    "Latency of forwarding an operator reading upstream.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, nil)

	collectors := []prometheus.Collector{fetch, submit}
	for _, c := range counters {
		collectors = append(collectors, c)
	}
	for _, g := range gauges {
		collectors = append(collectors, g)
	}
	reg.MustRegister(collectors...)

	return &PromObs{
		log:      logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]*prometheus.HistogramVec{
			"citypulse_source_fetch_seconds":   fetch,
			"citypulse_submit_latency_seconds": submit,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(attrs(fields), slog.Any("err", err))...)
}

// LogCritical logs at error level with critical=true; there is no slog level
// above error.
func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(attrs(fields), slog.Any("err", err), slog.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

// ObserveLatency drops the sample when labels do not match the histogram's
// label names.
func (p *PromObs) ObserveLatency(name string, seconds float64, labels ...string) {
	h, ok := p.histos[name]
	if !ok {
		return
	}
	o, err := h.GetMetricWithLabelValues(labels...)
	if err != nil {
		return
	}
	o.Observe(seconds)
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDLQ(id ports.WALEntryID, r *domain.SensorReading, err error) {
	p.IncCounter("citypulse_outbox_dlq_total", 1)
	args := []any{slog.Uint64("entry", uint64(id)), slog.Any("err", err)}
	if r != nil {
		args = append(args, slog.String("sensor", r.SensorID), slog.String("type", r.SensorType))
	}
	p.log.Warn("reading_dead_lettered", args...)
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
