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
	d, err := citypulse.NewDashboard(citypulse.DefaultConfig(),
		citypulse.WithStatsSink(citypulse.NewCallbackSubscriber("stdout", printStats)),
	)
	if err != nil {
		log.Fatalf("build dashboard: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("dashboard exited: %v", err)
	}
}

func printStats(rec citypulse.StatsRecord) error {
	fmt.Printf("%s users=%.0f orders=%.0f revenue=%.0f growth=%.2f%% sensors=%d\n",
		time.Now().Format(time.RFC3339),
		rec.Users,
		rec.Orders,
		rec.Revenue,
		rec.Growth,
		len(rec.SensorData),
	)
	return nil
}
