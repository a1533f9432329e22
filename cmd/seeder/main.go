//cmd/seeder/main.go
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ewynk/mail-backend/internal/config"
	"github.com/ewynk/mail-backend/internal/db"
	"github.com/ewynk/mail-backend/internal/logger"
)

func main() {
	log := logger.New()
	defer log.Sync()

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer conn.Close()

	dir := os.Getenv("SEED_DIR")
	if dir == "" {
		dir = "seed"
	}

	// Order matters: the schema first, then rows referenced by later files.
	seedFiles := []string{
		"schema.sql",
		"contacts.sql",
		"campaigns.sql",
	}

	for _, name := range seedFiles {
		file := filepath.Join(dir, name)
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatalw("failed to read seed file", "file", file, "error", err)
		}

		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.Fatalw("failed to execute seed file", "file", file, "error", err)
		}
		log.Infow("seeded", "file", file)
	}

	log.Info("database seeding completed")
}
