package poller

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalamif/CityPulse/internal/app/synth"
	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

const (
	SourceRemoteStats    = "remote_stats"
	SourceRemoteReadings = "remote_readings"
	SourceSynthetic      = "synthetic_default"
)

// ErrEmptyStats is returned when the stats endpoint answers without a body.
var ErrEmptyStats = errors.New("poller: empty stats body")

// Strategy is one level of the fallback chain.
type Strategy struct {
	Name  string
	Fetch func(ctx context.Context) (domain.StatsRecord, error)
}

// RemoteStats publishes the aggregated stats body verbatim.
func RemoteStats(src ports.StatsSource) Strategy {
	return Strategy{
		Name: SourceRemoteStats,
		Fetch: func(ctx context.Context) (domain.StatsRecord, error) {
			rec, err := src.FetchStats(ctx)
			if err != nil {
				return domain.StatsRecord{}, err
			}
			if rec == nil {
				return domain.StatsRecord{}, ErrEmptyStats
			}
			return *rec, nil
		},
	}
}

// RemoteReadings fetches raw readings and synthesizes stats from them.
func RemoteReadings(src ports.ReadingSource) Strategy {
	return Strategy{
		Name: SourceRemoteReadings,
		Fetch: func(ctx context.Context) (domain.StatsRecord, error) {
			readings, err := src.FetchReadings(ctx)
			if err != nil {
				return domain.StatsRecord{}, err
			}
			return synth.Synthesize(readings), nil
		},
	}
}

// DefaultChain is remote stats first, then remote readings.
func DefaultChain(stats ports.StatsSource, readings ports.ReadingSource) []Strategy {
	var chain []Strategy
	if stats != nil {
		chain = append(chain, RemoteStats(stats))
	}
	if readings != nil {
		chain = append(chain, RemoteReadings(readings))
	}
	return chain
}

// attempt runs one level, turning a panic into an error so a broken source
// only costs its own level.
func attempt(ctx context.Context, s Strategy) (rec domain.StatsRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.Name, r)
		}
	}()
	if s.Fetch == nil {
		return domain.StatsRecord{}, fmt.Errorf("%s: nil fetch", s.Name)
	}
	return s.Fetch(ctx)
}
