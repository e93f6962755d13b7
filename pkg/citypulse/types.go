package citypulse

import (
	"github.com/ghalamif/CityPulse/internal/app/pipeline"
	"github.com/ghalamif/CityPulse/internal/app/poller"
	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

// StatsRecord is the aggregate published on every tick.
type StatsRecord = domain.StatsRecord

// SensorReading is one city sensor measurement.
type SensorReading = domain.SensorReading

// DayComparison compares sensor activity between two days.
type DayComparison = domain.DayComparison

// Subscription is a live view of the stats broadcast.
type Subscription = poller.Subscription

// Authenticator exposes the login state used to gate remote polling.
type Authenticator = ports.Authenticator

// StatsSource returns pre-aggregated statistics.
type StatsSource = ports.StatsSource

// ReadingSource returns raw sensor readings.
type ReadingSource = ports.ReadingSource

// ReadingSubmitter forwards operator readings upstream.
type ReadingSubmitter = ports.ReadingSubmitter

// ComparisonSource answers day-to-day comparisons.
type ComparisonSource = ports.ComparisonSource

// StatsSink receives every published record.
type StatsSink = ports.StatsSink

// Observability emits logs and metrics about polling, fan-out and submissions.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// WALEntryID identifies an outbox WAL entry.
type WALEntryID = ports.WALEntryID

var (
	ErrQueueFull    = pipeline.ErrQueueFull
	ErrWALFull      = pipeline.ErrWALFull
	ErrOutboxClosed = pipeline.ErrOutboxClosed
)
