package ports

import "github.com/ghalamif/CityPulse/internal/domain"

type WALEntryID uint64

type WAL interface {
	Append(r *domain.SensorReading) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, r *domain.SensorReading) error) error
	Commit(upto WALEntryID) error
	Stats() WALStats
	Close() error
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
