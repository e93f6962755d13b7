package ports

import "github.com/ghalamif/CityPulse/internal/domain"

// QueuedReading is an operator submission waiting to be forwarded upstream.
type QueuedReading struct {
	ID      WALEntryID
	Reading *domain.SensorReading
}

type ReadingQueue interface {
	Enqueue(id WALEntryID, r *domain.SensorReading) bool
	DequeueBatch(max int) []QueuedReading
	Len() int
}
