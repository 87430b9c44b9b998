package app

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the dashboard.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// APIBaseURL points at the society's ledger API.
	APIBaseURL string        `envconfig:"API_BASE_URL" default:"https://api.malibag.coop"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"30s"`

	// RedisAddr selects the Redis-backed session slot. When empty the
	// session snapshot lives in SessionSlotPath instead.
	RedisAddr       string `envconfig:"REDIS_ADDR" default:""`
	SessionSlotKey  string `envconfig:"SESSION_SLOT_KEY" default:"malibag:session"`
	SessionSlotPath string `envconfig:"SESSION_SLOT_PATH" default:"malibag-session.json"`
}

// LoadConfig reads configuration from a local .env file (when present)
// and the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("api base url must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
