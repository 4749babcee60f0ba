// Package config loads service settings from defaults, an optional .env file
// and the process environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds runtime settings for the web service.
type Config struct {
	Port string

	DBDriver string // "mysql", "postgres" or "memory"
	DBDSN    string

	JWTSecret string
	TokenTTL  time.Duration

	AdminEmails     []string
	AdminEmailsFile string

	FreeCredits       int64
	PlanValidity      time.Duration
	PlanCheckInterval time.Duration

	PublicURL   string
	AIRunnerURL string

	RateLimit int // requests per minute per IP

	LogLevel  string
	LogFormat string

	Razorpay RazorpayConfig
	S3       S3Config
	SMTP     SMTPConfig
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type SMTPConfig struct {
	Server   string
	Port     string
	User     string
	Pass     string
	FromAddr string
	FromName string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Port = "8080"
	c.DBDriver = "mysql"
	c.TokenTTL = 30 * 24 * time.Hour
	c.FreeCredits = 5
	c.PlanValidity = 30 * 24 * time.Hour
	c.PlanCheckInterval = time.Hour
	c.PublicURL = "http://localhost:8080"
	c.RateLimit = 15
	c.LogLevel = "info"
	c.LogFormat = "auto"
	c.Razorpay.BaseURL = "https://api.razorpay.com/v1"
	c.S3.Region = "us-east-1"
}

// Load reads .env when present, then overlays the environment on the defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.applyEnv(os.LookupEnv)
	return cfg
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("GIN_PORT", &c.Port)
	str("DB_DRIVER", &c.DBDriver)
	str("DB", &c.DBDSN)
	str("SECRET", &c.JWTSecret)
	str("ADMIN_EMAILS_FILE", &c.AdminEmailsFile)
	str("PUBLIC_URL", &c.PublicURL)
	str("AI_RUNNER_URL", &c.AIRunnerURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	str("RAZORPAY_KEY_ID", &c.Razorpay.KeyID)
	str("RAZORPAY_KEY_SECRET", &c.Razorpay.KeySecret)
	str("RAZORPAY_WEBHOOK_SECRET", &c.Razorpay.WebhookSecret)
	str("RAZORPAY_BASE_URL", &c.Razorpay.BaseURL)

	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)

	str("SMTP_SERVER", &c.SMTP.Server)
	str("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USER", &c.SMTP.User)
	str("SMTP_PASS", &c.SMTP.Pass)
	str("FROM_ADDR", &c.SMTP.FromAddr)
	str("FROM_NAME", &c.SMTP.FromName)

	if v, ok := lookup("ADMIN_EMAILS"); ok {
		c.AdminEmails = splitList(v)
	}

	if v, ok := lookup("FREE_CREDITS"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
			c.FreeCredits = n
		} else {
			log.Warn().Str("key", "FREE_CREDITS").Str("value", v).Msg("Ignoring invalid setting")
		}
	}
	if v, ok := lookup("PLAN_VALIDITY_DAYS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.PlanValidity = time.Duration(n) * 24 * time.Hour
		} else {
			log.Warn().Str("key", "PLAN_VALIDITY_DAYS").Str("value", v).Msg("Ignoring invalid setting")
		}
	}
	if v, ok := lookup("PLAN_CHECK_INTERVAL"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			c.PlanCheckInterval = d
		} else {
			log.Warn().Str("key", "PLAN_CHECK_INTERVAL").Str("value", v).Msg("Ignoring invalid setting")
		}
	}
	if v, ok := lookup("TOKEN_TTL"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			c.TokenTTL = d
		} else {
			log.Warn().Str("key", "TOKEN_TTL").Str("value", v).Msg("Ignoring invalid setting")
		}
	}
	if v, ok := lookup("RATE_LIMIT"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.RateLimit = n
		} else {
			log.Warn().Str("key", "RATE_LIMIT").Str("value", v).Msg("Ignoring invalid setting")
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
