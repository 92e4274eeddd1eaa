package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/repository"
)

func main() {
	_ = godotenv.Load()
	logging.Init("pix-ledger-migrate", "info", os.Getenv("APP_ENV"))

	dir := flag.String("dir", "migrations", "directory holding the migration files")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	direction := flag.Arg(0)
	if direction == "" {
		direction = "up"
	}

	var err error
	switch direction {
	case "up":
		err = repository.Migrate(databaseURL, *dir)
	case "down":
		err = repository.MigrateDown(databaseURL, *dir)
	default:
		slog.Error("unknown direction, expected up or down", "direction", direction)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("migration failed", "direction", direction, "error", err)
		os.Exit(1)
	}
	slog.Info("migrations complete", "direction", direction, "dir", *dir)
}
