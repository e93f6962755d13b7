package ports

import (
	"context"

	"github.com/ghalamif/CityPulse/internal/domain"
)

// StatsSource returns pre-aggregated dashboard statistics.
type StatsSource interface {
	FetchStats(ctx context.Context) (*domain.StatsRecord, error)
}

// ReadingSource returns raw sensor readings.
type ReadingSource interface {
	FetchReadings(ctx context.Context) ([]domain.SensorReading, error)
}

// ReadingSubmitter forwards an operator-submitted reading upstream.
type ReadingSubmitter interface {
	SubmitReading(ctx context.Context, r domain.SensorReading) error
}

// ComparisonSource compares sensor activity between two days (YYYY-MM-DD).
type ComparisonSource interface {
	CompareDayToDay(ctx context.Context, date1, date2 string) (*domain.DayComparison, error)
}
