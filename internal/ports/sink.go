package ports

import (
	"context"

	"github.com/ghalamif/CityPulse/internal/domain"
)

// StatsSink receives every published StatsRecord (archives, relays, callbacks).
type StatsSink interface {
	WriteStats(ctx context.Context, rec domain.StatsRecord) error
	Name() string
}
