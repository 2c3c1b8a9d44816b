package main

import (
	"log"
	"time"

	"edgelink/internal/engine/analytics"
	"edgelink/internal/engine/links"
	"edgelink/internal/pkg/logger"
	"edgelink/internal/platform/config"
	"edgelink/internal/platform/database"
	"edgelink/internal/workers"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open link store: %v", err)
	}
	defer db.Close()

	analyticsRepo := analytics.NewRepository(db)
	linkRepo := links.NewRepository(db)

	log.Println("Starting background workers...")

	go runDailyStatsWorker(analyticsRepo)
	go runLinkExpiryWorker(linkRepo)

	// Keep process alive
	select {}
}

func runDailyStatsWorker(repo *analytics.Repository) {
	// Run at 01:00 UTC daily
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 1, 0, 0, 0, time.UTC)
		duration := next.Sub(now)

		if duration < 0 {
			duration = time.Minute
		}

		log.Printf("Daily stats worker sleeping for %v", duration)
		time.Sleep(duration)

		if err := workers.AggregateDailyStats(repo, ""); err != nil {
			log.Printf("Error aggregating stats: %v", err)
		}
	}
}

func runLinkExpiryWorker(repo *links.Repository) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		workers.ExpireLinks(repo)
	}
}
