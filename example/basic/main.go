package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/CityPulse"
)

func main() {
	cfg, err := citypulse.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	d, err := citypulse.NewDashboard(cfg)
	if err != nil {
		log.Fatalf("build dashboard: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("dashboard exited: %v", err)
	}
}
