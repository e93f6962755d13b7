package domain

// StatsRecord is the fixed-shape aggregate published to the dashboard on every
// tick. Records are passed by value and never mutated once published; the
// SensorData slice is shared with the producer and must be treated as
// read-only by subscribers.
type StatsRecord struct {
	Users          float64         `json:"users"`
	Orders         float64         `json:"orders"`
	Revenue        float64         `json:"revenue"`
	Growth         float64         `json:"growth"`
	ActiveUsers    float64         `json:"activeUsers"`
	TotalSales     float64         `json:"totalSales"`
	ConversionRate float64         `json:"conversionRate"`
	AvgOrderValue  float64         `json:"avgOrderValue"`
	SensorData     []SensorReading `json:"sensorData,omitempty"`
}

// DefaultStats is the record shown when no live data is available.
func DefaultStats() StatsRecord {
	return StatsRecord{
		Users:          1234,
		Orders:         567,
		Revenue:        12345,
		Growth:         23,
		ActiveUsers:    234,
		TotalSales:     1567,
		ConversionRate: 3.5,
		AvgOrderValue:  75,
	}
}
