// Package sink archives published dashboard stats.
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Archive appends every published StatsRecord to a Postgres (or Timescale)
// table.
type Archive struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// OpenArchive connects with lib/pq and verifies the connection.
func OpenArchive(ctx context.Context, connString, table string) (*Archive, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	a, err := NewArchive(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func NewArchive(db *sql.DB, table string) (*Archive, error) {
	if !identRE.MatchString(table) {
		return nil, fmt.Errorf("archive table %q is not a plain identifier", table)
	}
	return &Archive{db: db, table: table, now: time.Now}, nil
}

func (a *Archive) Name() string { return "archive" }

// EnsureSchema creates the archive table when it does not exist yet.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+a.table+` (
	ts TIMESTAMPTZ NOT NULL,
	users DOUBLE PRECISION NOT NULL,
	orders DOUBLE PRECISION NOT NULL,
	revenue DOUBLE PRECISION NOT NULL,
	growth DOUBLE PRECISION NOT NULL,
	active_users DOUBLE PRECISION NOT NULL,
	total_sales DOUBLE PRECISION NOT NULL,
	conversion_rate DOUBLE PRECISION NOT NULL,
	avg_order_value DOUBLE PRECISION NOT NULL,
	sensor_data JSONB
)`)
	return err
}

func (a *Archive) WriteStats(ctx context.Context, rec domain.StatsRecord) error {
	var sensorData any
	if len(rec.SensorData) > 0 {
		b, err := json.Marshal(rec.SensorData)
		if err != nil {
			return fmt.Errorf("marshal sensor data: %w", err)
		}
		sensorData = b
	}

	_, err := a.db.ExecContext(ctx,
		"INSERT INTO "+a.table+" (ts, users, orders, revenue, growth, active_users, total_sales, conversion_rate, avg_order_value, sensor_data) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)",
		a.now().UTC(),
		rec.Users,
		rec.Orders,
		rec.Revenue,
		rec.Growth,
		rec.ActiveUsers,
		rec.TotalSales,
		rec.ConversionRate,
		rec.AvgOrderValue,
		sensorData,
	)
	if err != nil {
		return fmt.Errorf("archive insert: %w", err)
	}
	return nil
}

func (a *Archive) Close() error { return a.db.Close() }

var _ ports.StatsSink = (*Archive)(nil)
