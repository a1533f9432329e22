// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/ewynk/mail-backend/internal/app"
	"github.com/ewynk/mail-backend/internal/config"
	"github.com/ewynk/mail-backend/internal/controller"
	"github.com/ewynk/mail-backend/internal/handler"
	"github.com/ewynk/mail-backend/internal/logger"
	"github.com/ewynk/mail-backend/internal/queue"
	"github.com/ewynk/mail-backend/internal/scheduler"
	"github.com/ewynk/mail-backend/internal/service"
)

func main() {
	log := logger.New()
	defer log.Sync()

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialise", "error", err)
	}
	defer a.Close()

	campaignController := &controller.CampaignController{
		CampaignService: a.Campaigns,
		Log:             log.Named("http"),
	}
	contactHandler := &handler.ContactHandler{
		Contacts:   a.Contacts,
		Duplicates: a.Duplicates,
		Log:        log.Named("http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", controller.UserHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		controller.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/campaigns", campaignController.Routes)
	r.Route("/api/contacts", contactHandler.Routes)
	r.Get("/unsubscribe", contactHandler.Unsubscribe)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Without a broker nobody else drains the in-memory queue.
	if _, ok := a.Queue.(*queue.InMemoryQueue); ok {
		worker := service.NewWorker(a.Sender, log.Named("worker"))
		g.Go(func() error { return worker.Start(gctx, a.Queue) })
	}

	if !cfg.Scheduler.Disabled {
		sched, err := scheduler.New(cfg.Scheduler.Spec, a.Campaigns, log.Named("scheduler"))
		if err != nil {
			log.Fatalw("failed to create scheduler", "error", err)
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Errorw("server stopped with error", "error", err)
		return
	}
	log.Info("server stopped")
}
