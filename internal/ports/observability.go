package ports

import "github.com/ghalamif/CityPulse/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	// ObserveLatency records seconds on histogram name; labels are its label
	// values in declaration order.
	ObserveLatency(name string, seconds float64, labels ...string)

	SetGauge(name string, v float64)

	RecordDLQ(id WALEntryID, r *domain.SensorReading, err error)
}

type Field struct {
	Key   string
	Value any
}
