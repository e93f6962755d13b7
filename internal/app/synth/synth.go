// Package synth derives dashboard statistics from raw sensor readings and
// produces the simulated records used when no live source answers.
package synth

import (
	"math"

	"github.com/ghalamif/CityPulse/internal/domain"
)

const (
	growthCap         = 50
	conversionRateCap = 10
)

// Synthesize maps readings onto a StatsRecord. It is total: an empty input
// yields DefaultStats and a reading without a usable value counts as 0.
// Growth and conversion rate are capped from above only, so negative
// readings yield negative values. Every field stays finite and JSON-encodable:
// derived values beyond the float64 range saturate at ±math.MaxFloat64.
func Synthesize(readings []domain.SensorReading) domain.StatsRecord {
	if len(readings) == 0 {
		return domain.DefaultStats()
	}

	count := float64(len(readings))
	// Summing per-reading shares keeps the mean finite for any finite input.
	var avg float64
	for _, r := range readings {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			continue
		}
		avg += r.Value / count
	}

	return domain.StatsRecord{
		Users:          count * 10,
		Orders:         count,
		Revenue:        finite(math.Floor(avg * 100)),
		Growth:         math.Min(avg*2, growthCap),
		ActiveUsers:    math.Floor(count * 0.2),
		TotalSales:     count * 5,
		ConversionRate: math.Min(avg/10, conversionRateCap),
		AvgOrderValue:  finite(math.Floor(avg * 2)),
		SensorData:     readings,
	}
}

func finite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	case math.IsNaN(v):
		return 0
	}
	return v
}

// Jitter perturbs every numeric field of base independently. rnd must return
// values in [0, 1); each field consumes exactly one draw, in declaration order.
func Jitter(base domain.StatsRecord, rnd func() float64) domain.StatsRecord {
	out := base
	out.Users += step(rnd(), 20, 10)
	out.Orders += step(rnd(), 10, 5)
	out.Revenue += step(rnd(), 100, 50)
	out.Growth += rnd()*2 - 1
	out.ActiveUsers += step(rnd(), 5, 2)
	out.TotalSales += step(rnd(), 10, 5)
	out.ConversionRate += rnd()*0.2 - 0.1
	out.AvgOrderValue += step(rnd(), 5, 2)
	return out
}

// Simulated is the jittered default record published when every source fails.
func Simulated(rnd func() float64) domain.StatsRecord {
	return Jitter(domain.DefaultStats(), rnd)
}

func step(r, span, offset float64) float64 {
	return math.Floor(r*span) - offset
}
