package main

import (
	"database/sql"
	"log/slog"
	"nemt-trip-service/internal/adapters/repositories"
	"nemt-trip-service/internal/config"
	"nemt-trip-service/internal/platform/db"
	"nemt-trip-service/internal/platform/obs"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	logger := obs.NewLogger(os.Stdout, obs.ParseLevel(config.Get("LOG_LEVEL", "info")))

	databaseURL := config.Get("DATABASE_URL", "")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := db.Open(databaseURL)
	if err != nil {
		obs.LogError(logger, "open database", err)
		os.Exit(1)
	}
	defer db.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/trips.json")
	if err := initAndSeed(logger, db, seedPath); err != nil {
		obs.LogError(logger, "dbtool failed", err)
		db.Close()
		os.Exit(1)
	}
}

func initAndSeed(logger *slog.Logger, db *sql.DB, seedPath string) error {
	logger.Info("initializing database schema")
	if err := repositories.InitSchema(db); err != nil {
		return err
	}
	logger.Info("schema ready")

	logger.Info("seeding database", slog.String("path", seedPath))
	if err := repositories.SeedFromJSON(db, seedPath); err != nil {
		return err
	}
	logger.Info("seeding complete")

	return nil
}
