package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the server and the send worker.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Mail      MailConfig      `yaml:"mail"`
	Sending   SendingConfig   `yaml:"sending"`
	App       AppConfig       `yaml:"app"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig is optional. Without a URL the lock falls back to Postgres
// advisory locks and only the in-process rate limiter is available.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AMQPConfig is optional. Without a URL send jobs go through the in-memory queue.
type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// MailConfig is the environment-level outbound provider. When no provider is
// configured, senders fall back to the SMTP credentials stored per user.
type MailConfig struct {
	Provider  string       `yaml:"provider"` // smtp, ses, resend or empty
	FromEmail string       `yaml:"from_email"`
	FromName  string       `yaml:"from_name"`
	SMTP      SMTPConfig   `yaml:"smtp"`
	SES       SESConfig    `yaml:"ses"`
	Resend    ResendConfig `yaml:"resend"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSL      bool   `yaml:"ssl"`
}

type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

// ActiveProvider returns the configured provider, inferring it from whichever
// credentials are present when Provider is empty. "" means none.
func (m MailConfig) ActiveProvider() string {
	switch p := strings.ToLower(m.Provider); p {
	case "smtp", "ses", "resend":
		return p
	}
	switch {
	case m.SMTP.Host != "":
		return "smtp"
	case m.SES.AccessKey != "" && m.SES.SecretKey != "":
		return "ses"
	case m.Resend.APIKey != "":
		return "resend"
	}
	return ""
}

type SendingConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	Limiter       string  `yaml:"limiter"` // local or redis
	LockTTLMins   int     `yaml:"lock_ttl_minutes"`
}

// Interval is the spacing between two dispatches at the configured rate.
func (s SendingConfig) Interval() time.Duration {
	if s.RatePerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / s.RatePerSecond)
}

// LockTTL bounds how long a crashed sender can keep a campaign locked.
func (s SendingConfig) LockTTL() time.Duration {
	return time.Duration(s.LockTTLMins) * time.Minute
}

type AppConfig struct {
	BaseURL       string      `yaml:"base_url"`
	DefaultCTAURL string      `yaml:"default_cta_url"`
	DefaultDomain string      `yaml:"default_domain"`
	Brand         BrandConfig `yaml:"brand"`
}

// BrandConfig holds the asset URLs exposed to templates.
type BrandConfig struct {
	LogoURL   string `yaml:"logo_url"`
	BannerURL string `yaml:"banner_url"`
	IconURL   string `yaml:"icon_url"`
}

// SchedulerConfig controls the in-server tick that queues due campaigns.
type SchedulerConfig struct {
	Disabled bool   `yaml:"disabled"`
	Spec     string `yaml:"spec"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads .env (if present), the YAML file at path (if present) and
// then lets environment variables override individual values.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	overrideString(&cfg.Database.URL, "DATABASE_URL")
	overrideString(&cfg.Redis.URL, "REDIS_URL")
	overrideString(&cfg.AMQP.URL, "AMQP_URL")
	overrideString(&cfg.Mail.Provider, "MAIL_PROVIDER")
	overrideString(&cfg.Mail.FromEmail, "SMTP_FROM")
	overrideString(&cfg.Mail.FromName, "SMTP_FROM_NAME")
	overrideString(&cfg.Mail.SMTP.Host, "SMTP_HOST")
	overrideString(&cfg.Mail.SMTP.Username, "SMTP_USER")
	overrideString(&cfg.Mail.SMTP.Password, "SMTP_PASSWORD")
	overrideString(&cfg.Mail.SES.Region, "AWS_SES_REGION")
	overrideString(&cfg.Mail.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	overrideString(&cfg.Mail.SES.SecretKey, "AWS_SES_SECRET_KEY")
	overrideString(&cfg.Mail.Resend.APIKey, "RESEND_API_KEY")
	overrideString(&cfg.App.BaseURL, "APP_BASE_URL")
	overrideString(&cfg.App.DefaultCTAURL, "DEFAULT_CTA_URL")
	overrideString(&cfg.App.DefaultDomain, "DEFAULT_DOMAIN")
	overrideString(&cfg.App.Brand.LogoURL, "BRAND_LOGO_URL")
	overrideString(&cfg.Sending.Limiter, "RATE_LIMIT_BACKEND")
	overrideString(&cfg.Scheduler.Spec, "SCHEDULER_SPEC")

	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SMTP_PORT: %w", err)
		}
		cfg.Mail.SMTP.Port = port
	}
	if v := os.Getenv("SCHEDULER_DISABLED"); v != "" {
		cfg.Scheduler.Disabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SMTP_SSL"); v != "" {
		cfg.Mail.SMTP.SSL = v == "true" || v == "1"
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SEND_RATE_PER_SECOND"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("SEND_RATE_PER_SECOND: %w", err)
		}
		cfg.Sending.RatePerSecond = rate
	}
	if v := os.Getenv("SEND_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SEND_BURST: %w", err)
		}
		cfg.Sending.Burst = burst
	}

	cfg.applyDefaults()
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "campaign_sends"
	}
	if c.Mail.SMTP.Port == 0 {
		c.Mail.SMTP.Port = 587
	}
	if c.Mail.SES.Region == "" {
		c.Mail.SES.Region = "us-east-1"
	}
	// One message per second unless configured otherwise.
	if c.Sending.RatePerSecond <= 0 {
		c.Sending.RatePerSecond = 1
	}
	if c.Sending.Burst <= 0 {
		c.Sending.Burst = 1
	}
	if c.Sending.Limiter == "" {
		c.Sending.Limiter = "local"
	}
	if c.Sending.LockTTLMins <= 0 {
		c.Sending.LockTTLMins = 60
	}
	if c.App.BaseURL == "" {
		c.App.BaseURL = "http://localhost:8080"
	}
	c.App.BaseURL = strings.TrimRight(c.App.BaseURL, "/")
	if c.App.DefaultCTAURL == "" {
		c.App.DefaultCTAURL = c.App.BaseURL
	}
	if c.App.DefaultDomain == "" {
		c.App.DefaultDomain = "ewynk.com"
	}
	if c.Scheduler.Spec == "" {
		c.Scheduler.Spec = "@every 1m"
	}
}
