package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/CityPulse"
)

func main() {
	sink, records, closeRecords := citypulse.NewChannelSubscriber("fanout", 32)
	defer closeRecords()

	d, err := citypulse.NewDashboard(citypulse.DefaultConfig(), citypulse.WithStatsSink(sink))
	if err != nil {
		log.Fatalf("build dashboard: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go revenueWatcher(records)

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("dashboard exited: %v", err)
	}
}

// revenueWatcher reports the revenue delta between consecutive snapshots.
func revenueWatcher(records <-chan citypulse.StatsRecord) {
	var prev float64
	for rec := range records {
		if prev != 0 {
			fmt.Printf("[%s] revenue %.0f (%+.0f)\n", time.Now().Format(time.TimeOnly), rec.Revenue, rec.Revenue-prev)
		}
		prev = rec.Revenue
	}
}
