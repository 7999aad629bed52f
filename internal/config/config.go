package config

import (
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	Port            string
	DBPath          string
	JWTSecret       string // empty disables API auth
	IngestRateLimit int    // requests per minute per client IP on ingestion routes
}

// Load reads configuration from environment variables
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/fleet/fleet.db"
	}

	rateLimit := 600
	if v := os.Getenv("INGEST_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateLimit = n
		}
	}

	return &Config{
		Port:            port,
		DBPath:          dbPath,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		IngestRateLimit: rateLimit,
	}
}
