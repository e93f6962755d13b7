package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

const (
	metricSinkFailures = "citypulse_stats_sink_failures_total"
	sinkWriteTimeout   = 5 * time.Second
)

// RunStatsSink writes every record from in to sink until in is closed or ctx
// is done. Write failures are logged and counted; the record is not retried.
func RunStatsSink(ctx context.Context, in <-chan domain.StatsRecord, sink ports.StatsSink, obs ports.Observability) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, sinkWriteTimeout)
			err := sink.WriteStats(wctx, rec)
			cancel()
			if err != nil {
				obs.IncCounter(metricSinkFailures, 1)
				obs.LogError("stats_sink_write_failed", err, ports.Field{Key: "sink", Value: sink.Name()})
			}
		}
	}
}
