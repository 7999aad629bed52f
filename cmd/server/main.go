package main

import (
	"log"

	"github.com/fleetgrid/fleet-backend-go/internal/api"
	"github.com/fleetgrid/fleet-backend-go/internal/config"
	"github.com/fleetgrid/fleet-backend-go/internal/database"
	"github.com/fleetgrid/fleet-backend-go/internal/tachograph"
)

func main() {
	cfg := config.Load()

	dbConfig := database.Config{
		Path: cfg.DBPath,
	}
	if err := database.Init(dbConfig); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	migrations := database.NewMigrationManager(database.GetDB())
	if err := migrations.RunMigrations(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Tachograph decoding is performed by an external extractor; the
	// placeholder rejects uploads until one is wired in.
	router := api.SetupRouter(cfg, tachograph.Unsupported{})

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
