package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// Service
	ServiceName string `env:"SERVICE_NAME" envDefault:"site-server"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`

	// HTTP
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Chat widget
	ReplyDelayMin time.Duration `env:"CHAT_REPLY_DELAY_MIN" envDefault:"1s"`
	ReplyDelayMax time.Duration `env:"CHAT_REPLY_DELAY_MAX" envDefault:"2s"`
	MaxSessions   int           `env:"CHAT_MAX_SESSIONS" envDefault:"1000"`

	// Checkout
	SiteURL          string        `env:"SITE_URL" envDefault:"http://localhost:3000"`
	StripeSecretKey  string        `env:"STRIPE_SECRET_KEY"`
	StripeAPIBase    string        `env:"STRIPE_API_BASE" envDefault:"https://api.stripe.com"`
	UpstreamTimeout  time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"20s"`
	StripeMaxRetries int64         `env:"STRIPE_MAX_RETRIES" envDefault:"2"`
	PriceCacheFile   string        `env:"PRICE_CACHE_FILE"`

	// Speech input
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	STTModel     string `env:"OPENAI_STT_MODEL" envDefault:"whisper-1"`

	// Database
	DatabaseURL string `env:"DB_URL"`

	// Tracing
	OTLPEndpoint      string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSamplingRate float64 `env:"TRACE_SAMPLING_RATE" envDefault:"1.0"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	cfg.StripeSecretKey = strings.TrimSpace(cfg.StripeSecretKey)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.SiteURL = strings.TrimRight(strings.TrimSpace(cfg.SiteURL), "/")
	cfg.AllowedOrigins = trimList(cfg.AllowedOrigins)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{cfg.SiteURL}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ReplyDelayMin < 0 || c.ReplyDelayMax < c.ReplyDelayMin {
		return fmt.Errorf("invalid reply delay bounds: min %s, max %s", c.ReplyDelayMin, c.ReplyDelayMax)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("CHAT_MAX_SESSIONS must be positive, got %d", c.MaxSessions)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q (want console or json)", c.LogFormat)
	}
	for _, o := range c.AllowedOrigins {
		// Credentialed CORS cannot use a wildcard origin.
		if strings.Contains(o, "*") {
			return fmt.Errorf("ALLOWED_ORIGINS must list explicit origins, got %q", o)
		}
	}
	if c.StripeMaxRetries < 0 {
		return fmt.Errorf("STRIPE_MAX_RETRIES must not be negative, got %d", c.StripeMaxRetries)
	}
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("TRACE_SAMPLING_RATE must be within [0, 1], got %v", c.TraceSamplingRate)
	}
	return nil
}

// Warnings lists optional features that are off because credentials are
// missing.
func (c Config) Warnings() []string {
	var out []string
	if c.StripeSecretKey == "" {
		out = append(out, "STRIPE_SECRET_KEY is not set; checkout endpoints will return errors")
	}
	if c.OpenAIAPIKey == "" {
		out = append(out, "OPENAI_API_KEY is not set; voice input is disabled")
	}
	return out
}

func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
