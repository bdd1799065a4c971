// cmd/seeder/main.go
package main

import (
	"context"
	"log"

	"github.com/unclebandit/whatsapp-campaigns/internal/config"
	"github.com/unclebandit/whatsapp-campaigns/internal/db"
	"github.com/unclebandit/whatsapp-campaigns/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	lg := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	conn, err := db.Connect(ctx, cfg.DSN(), lg)
	if err != nil {
		lg.WithError(err).Fatal("❌ Failed to connect")
	}
	defer conn.Close()

	seedFiles := []string{
		"seed/schema.sql",
		"seed/campaigns.sql",
	}

	for _, file := range seedFiles {
		if err := db.ApplyFile(ctx, conn, file); err != nil {
			lg.WithError(err).Fatal("❌ Seeding failed")
		}
		lg.WithField("file", file).Info("Seeded")
	}

	lg.Info("Database seeding completed successfully!")
}
