package httpapi

import (
	"context"
	"time"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

// StaticReadings serves a fixed set of city sensors, stamped with the time of
// the call. Used for the readings endpoint while the API is disabled.
type StaticReadings struct {
	Now func() time.Time
}

func (s StaticReadings) FetchReadings(context.Context) ([]domain.SensorReading, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now().UTC().Format(time.RFC3339)

	return []domain.SensorReading{
		{SensorID: "sensor001", SensorType: "temperature", Value: 25.5, Location: "Building A", Timestamp: ts},
		{SensorID: "sensor002", SensorType: "humidity", Value: 60.2, Location: "Building B", Timestamp: ts},
		{SensorID: "sensor003", SensorType: "pressure", Value: 1013.25, Location: "Building C", Timestamp: ts},
		{SensorID: "sensor004", SensorType: "temperature", Value: 23.8, Location: "Building A", Timestamp: ts},
		{SensorID: "sensor005", SensorType: "humidity", Value: 58.5, Location: "Building B", Timestamp: ts},
		{SensorID: "sensor006", SensorType: "light", Value: 450, Location: "Building C", Timestamp: ts},
		{SensorID: "sensor007", SensorType: "motion", Value: 1, Location: "Building A", Timestamp: ts},
	}, nil
}

// OfflineComparisons answers day-to-day comparisons with canned figures.
type OfflineComparisons struct{}

func (OfflineComparisons) CompareDayToDay(_ context.Context, date1, date2 string) (*domain.DayComparison, error) {
	cmp := MockComparison(date1, date2)
	return &cmp, nil
}

// MockComparison is the canned comparison shown when no API is configured.
func MockComparison(date1, date2 string) domain.DayComparison {
	return domain.DayComparison{
		Date1: date1,
		Date2: date2,
		Summary: domain.ComparisonSummary{
			TotalSensorsDay1: 7,
			TotalSensorsDay2: 8,
			AverageValueDay1: 175.5,
			AverageValueDay2: 180.2,
			Difference:       4.7,
			PercentageChange: 2.68,
			Trend:            "increasing",
		},
		BySensorType: []domain.TypeComparison{
			{SensorType: "temperature", Day1Count: 2, Day1Average: 24.65, Day2Count: 2, Day2Average: 26.0, Difference: 1.35, PercentageChange: 5.48},
			{SensorType: "humidity", Day1Count: 2, Day1Average: 59.35, Day2Count: 2, Day2Average: 61.0, Difference: 1.65, PercentageChange: 2.78},
			{SensorType: "pressure", Day1Count: 1, Day1Average: 1013.25, Day2Count: 1, Day2Average: 1015.0, Difference: 1.75, PercentageChange: 0.17},
		},
		Day1Data: []domain.SensorReading{
			{SensorID: "sensor001", SensorType: "temperature", Value: 25.5, Timestamp: date1 + "T12:00:00Z"},
			{SensorID: "sensor002", SensorType: "humidity", Value: 60.2, Timestamp: date1 + "T12:00:00Z"},
		},
		Day2Data: []domain.SensorReading{
			{SensorID: "sensor001", SensorType: "temperature", Value: 26.0, Timestamp: date2 + "T12:00:00Z"},
			{SensorID: "sensor002", SensorType: "humidity", Value: 61.0, Timestamp: date2 + "T12:00:00Z"},
		},
	}
}

var (
	_ ports.ReadingSource    = StaticReadings{}
	_ ports.ComparisonSource = OfflineComparisons{}
	_ ports.StatsSource      = (*Client)(nil)
	_ ports.ReadingSource    = (*Client)(nil)
	_ ports.ReadingSubmitter = (*Client)(nil)
	_ ports.ComparisonSource = (*Client)(nil)
)
