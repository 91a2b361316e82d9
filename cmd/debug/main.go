package main

import (
	"context"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/prite36/watering-control/internal/config"
	"github.com/prite36/watering-control/internal/models"
	"github.com/prite36/watering-control/internal/schedule"
)

// Resolves the next pending schedule directly, without starting the runner or
// the API server.
func main() {
	log.Println("Starting debug run...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Auto-migrating database schema...")
	if err := db.AutoMigrate(&models.Schedule{}); err != nil {
		log.Fatalf("Failed to auto-migrate database schema: %v", err)
	}

	repo := schedule.NewRepository(schedule.NewGormStore(db))
	resolver := schedule.NewResolver(repo)

	next, err := resolver.ResolveNext(context.Background(), time.Now())
	if err != nil {
		log.Fatalf("Resolve failed: %v", err)
	}
	if next == nil {
		log.Println("No pending schedules.")
		return
	}

	log.Printf("Next schedule: %s plant=%s duration=%ds at %s",
		next.ID, next.PlantName, next.DurationSec, next.FullDateTime.Format(time.RFC3339))
}
