package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/whatsapp-campaigns/internal/app"
	"github.com/unclebandit/whatsapp-campaigns/internal/config"
	"github.com/unclebandit/whatsapp-campaigns/internal/logger"
	"github.com/unclebandit/whatsapp-campaigns/internal/service"
)

// The worker consumes campaign_batches and whatsapp_events from the broker
// and polls for scheduled campaigns. It needs AMQP_URL.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	lg := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.AMQPURL == "" {
		lg.Fatal("❌ AMQP_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, nil, lg)
	if err != nil {
		lg.WithError(err).Fatal("❌ Failed to start")
	}
	defer a.Close()

	if err := a.Worker.Start(ctx, a.Queue); err != nil {
		lg.WithError(err).Fatal("❌ Failed to register consumers")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return service.RunScheduler(gctx, a.Campaigns, cfg.SchedulePoll, lg)
	})

	lg.Info("Worker running, waiting for messages...")
	if err := g.Wait(); err != nil {
		lg.WithError(err).Error("❌ Worker stopped with error")
	}
	lg.Info("👋 Worker stopped")
}
