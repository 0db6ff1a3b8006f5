package common

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	API     APIConfig
	Display DisplayConfig
	Store   StoreConfig
	Rates   RatesConfig
	AMQP    AMQPConfig
	Refresh RefreshConfig
	Health  HealthConfig
	Ingest  IngestConfig
	Log     LogConfig
}

// APIConfig holds remote API settings.
type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL" env-default:"http://localhost:8080/api"`
	Token   string        `env:"API_TOKEN"`
	Timeout time.Duration `env:"API_TIMEOUT" env-default:"30s"`
}

// DisplayConfig holds presentation defaults.
type DisplayConfig struct {
	Currency string `env:"DISPLAY_CURRENCY" env-default:"USD"`
}

// StoreConfig holds the local store settings. A postgres:// DSN selects
// Postgres, anything else is a SQLite path.
type StoreConfig struct {
	DSN         string        `env:"STORE_DSN" env-default:"./data/receipts-sync.db"`
	DialTimeout time.Duration `env:"STORE_DIAL_TIMEOUT" env-default:"3s"`
}

// RatesConfig holds exchange-rate settings.
type RatesConfig struct {
	Base       string        `env:"RATES_BASE" env-default:"USD"`
	TTL        time.Duration `env:"RATES_TTL" env-default:"1h"`
	StaleAfter time.Duration `env:"RATES_STALE_AFTER" env-default:"24h"`
}

// AMQPConfig holds the invalidation broker settings. An empty URL disables it.
type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" env-default:"receipts"`
	Queue    string `env:"AMQP_QUEUE"`
}

// RefreshConfig holds background refresh worker settings.
type RefreshConfig struct {
	Workers   int           `env:"REFRESH_WORKERS" env-default:"2"`
	QueueSize int           `env:"REFRESH_QUEUE_SIZE" env-default:"128"`
	Timeout   time.Duration `env:"REFRESH_TIMEOUT" env-default:"30s"`
}

// HealthConfig holds the daemon's gRPC health endpoint.
type HealthConfig struct {
	Addr string `env:"HEALTH_ADDR" env-default:":8081"`
}

// IngestConfig holds the drop-folder watcher settings. An empty Dir disables it.
type IngestConfig struct {
	Dir        string        `env:"INGEST_DIR"`
	Debounce   time.Duration `env:"INGEST_DEBOUNCE" env-default:"500ms"`
	SkipHidden bool          `env:"INGEST_SKIP_HIDDEN" env-default:"true"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

// LoadConfig loads an optional .env file and then reads the environment.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing .env is normal outside development
		_ = godotenv.Load(f)
	}
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "read environment", err)
	}
	cfg.Display.Currency = strings.ToUpper(strings.TrimSpace(cfg.Display.Currency))
	cfg.Rates.Base = strings.ToUpper(strings.TrimSpace(cfg.Rates.Base))
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return NewAppError("CONFIG_ERROR", "API_BASE_URL is required", ErrInvalidInput)
	}
	if err := NewValidator().
		Field("DISPLAY_CURRENCY", c.Display.Currency, Required, CurrencyCode).
		Field("RATES_BASE", c.Rates.Base, Required, CurrencyCode).
		Error(); err != nil {
		return NewAppError("CONFIG_ERROR", err.Error(), ErrInvalidInput)
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return NewAppError("CONFIG_ERROR", "STORE_DSN is required", ErrInvalidInput)
	}
	if c.Refresh.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "REFRESH_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
