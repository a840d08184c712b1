package app

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the API and the worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"90s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"75s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL        string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseServiceKey string `envconfig:"DATABASE_SERVICE_KEY" required:"true"`
	DatabaseMaxConns   int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	AuthURL     string        `envconfig:"AUTH_URL" required:"true"`
	AuthAnonKey string        `envconfig:"AUTH_ANON_KEY" required:"true"`
	AuthTimeout time.Duration `envconfig:"AUTH_TIMEOUT" default:"5s"`

	AIAPIKey        string        `envconfig:"AI_API_KEY" required:"true"`
	AIBaseURL       string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIDraftModel    string        `envconfig:"AI_DRAFT_MODEL" default:"gpt-4-0125-preview"`
	AIParseModel    string        `envconfig:"AI_PARSE_MODEL" default:"gpt-4"`
	AITimeout       time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AIRatePerMinute int           `envconfig:"AI_RATE_PER_MINUTE" default:"30"`

	RedisAddr       string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"10m"`
	InvoicePDFTTL   time.Duration `envconfig:"INVOICE_PDF_TTL" default:"24h"`

	InventoryAllowNegative bool `envconfig:"INVENTORY_ALLOW_NEGATIVE" default:"false"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("database url must be provided")
	}
	if strings.TrimSpace(c.DatabaseServiceKey) == "" {
		return errors.New("database service key must be provided")
	}
	if strings.TrimSpace(c.AuthURL) == "" {
		return errors.New("auth url must be provided")
	}
	if strings.TrimSpace(c.AuthAnonKey) == "" {
		return errors.New("auth anon key must be provided")
	}
	if strings.TrimSpace(c.AIAPIKey) == "" {
		return errors.New("ai api key must be provided")
	}
	if c.AIRatePerMinute <= 0 {
		return errors.New("AI_RATE_PER_MINUTE must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
