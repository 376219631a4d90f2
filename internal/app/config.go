package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// PGDSN enables persisted audit logs when set.
	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"4"`

	RedisAddr  string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	POCacheTTL time.Duration `envconfig:"PO_CACHE_TTL" default:"10m"`

	BackendURL     string        `envconfig:"BACKEND_URL" required:"true"`
	BackendToken   string        `envconfig:"BACKEND_TOKEN"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"15s"`

	UploadMaxBytes      int64         `envconfig:"UPLOAD_MAX_BYTES" default:"10485760"`
	UploadRatePerMinute int           `envconfig:"UPLOAD_RATE_PER_MINUTE" default:"10"`
	APIRatePerMinute    int           `envconfig:"API_RATE_PER_MINUTE" default:"300"`
	SessionIdleTTL      time.Duration `envconfig:"SESSION_IDLE_TTL" default:"2h"`
	AuditActorID        int64         `envconfig:"AUDIT_ACTOR_ID" default:"0"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("backend url must be provided")
	}
	if cfg.UploadMaxBytes <= 0 {
		return nil, errors.New("upload max bytes must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
