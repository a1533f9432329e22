package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ewynk/mail-backend/internal/app"
	"github.com/ewynk/mail-backend/internal/config"
	"github.com/ewynk/mail-backend/internal/logger"
	"github.com/ewynk/mail-backend/internal/service"
)

// The worker drains send jobs from RabbitMQ. A campaign interrupted by
// shutdown is left PAUSED with its cursor and continues on the next dispatch.
func main() {
	log := logger.New()
	defer log.Sync()

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	if cfg.AMQP.URL == "" {
		log.Fatal("AMQP_URL is required for the standalone worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialise", "error", err)
	}
	defer a.Close()

	worker := service.NewWorker(a.Sender, log.Named("worker"))
	if err := worker.Start(ctx, a.Queue); err != nil {
		log.Errorw("worker stopped with error", "error", err)
		return
	}
	log.Info("worker stopped")
}
