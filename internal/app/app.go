// Package app wires configuration into the repositories, services and
// infrastructure shared by the server and worker binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ewynk/mail-backend/internal/config"
	"github.com/ewynk/mail-backend/internal/db"
	"github.com/ewynk/mail-backend/internal/lock"
	"github.com/ewynk/mail-backend/internal/mailer"
	"github.com/ewynk/mail-backend/internal/queue"
	"github.com/ewynk/mail-backend/internal/ratelimit"
	"github.com/ewynk/mail-backend/internal/repository"
	"github.com/ewynk/mail-backend/internal/service"
)

type App struct {
	DB    *sql.DB
	Redis *redis.Client
	Queue queue.Queue

	Sender     *service.BatchSender
	Campaigns  *service.CampaignService
	Contacts   *service.ContactService
	Duplicates *service.DuplicateService
}

// New opens every backing connection named in cfg and builds the services.
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{DB: conn}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	if cfg.AMQP.URL != "" {
		q, err := queue.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Queue, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Queue = q
	} else {
		a.Queue = queue.NewInMemoryQueue(100, log)
	}

	campaigns := &repository.CampaignRepository{DB: conn}
	templates := &repository.TemplateRepository{DB: conn}
	contacts := &repository.ContactRepository{DB: conn}
	emailLogs := &repository.EmailLogRepository{DB: conn}
	users := &repository.UserRepository{DB: conn}
	duplicates := &repository.DuplicateRepository{DB: conn}

	recipients := &service.RecipientSelector{ContactRepo: contacts}

	a.Sender = &service.BatchSender{
		CampaignRepo: campaigns,
		TemplateRepo: templates,
		EmailLogRepo: emailLogs,
		Recipients:   recipients,
		Transports:   mailer.NewResolver(cfg.Mail, users),
		Limiter:      a.limiter(cfg.Sending, log),
		Locker:       lock.New(a.Redis, conn, cfg.Sending.LockTTL()),
		Context: service.CampaignContext{
			DefaultCTAURL: cfg.App.DefaultCTAURL,
			BaseURL:       cfg.App.BaseURL,
			DefaultDomain: cfg.App.DefaultDomain,
			Brand: service.BrandAssets{
				LogoURL:   cfg.App.Brand.LogoURL,
				BannerURL: cfg.App.Brand.BannerURL,
				IconURL:   cfg.App.Brand.IconURL,
			},
		},
		Log: log.Named("sender"),
	}

	a.Campaigns = &service.CampaignService{
		CampaignRepo: campaigns,
		TemplateRepo: templates,
		ContactRepo:  contacts,
		EmailLogRepo: emailLogs,
		Sender:       a.Sender,
		Queue:        a.Queue,
		Log:          log.Named("campaigns"),
	}
	a.Contacts = &service.ContactService{
		ContactRepo:  contacts,
		CampaignRepo: campaigns,
		Recipients:   recipients,
		Log:          log.Named("contacts"),
	}
	a.Duplicates = &service.DuplicateService{
		ContactRepo:   contacts,
		DuplicateRepo: duplicates,
		Log:           log.Named("duplicates"),
	}
	return a, nil
}

// limiter is process-local unless the redis limiter is requested and Redis is
// configured, in which case the rate holds across every sender process.
func (a *App) limiter(cfg config.SendingConfig, log *zap.SugaredLogger) ratelimit.Limiter {
	if strings.EqualFold(cfg.Limiter, "redis") {
		if a.Redis != nil {
			return ratelimit.NewRedisLimiter(a.Redis, "send", int(math.Ceil(cfg.RatePerSecond)))
		}
		log.Warn("redis limiter requested without redis, using local limiter")
	}
	return ratelimit.NewTokenBucket(cfg.RatePerSecond, cfg.Burst)
}

// Close releases every connection New opened.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
