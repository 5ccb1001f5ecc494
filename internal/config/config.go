package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "CHECKOUT_"

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Retry    RetryConfig    `koanf:"retry"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Rates    RatesConfig    `koanf:"rates"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Mailer   MailerConfig   `koanf:"mailer"`
	Logger   LoggerConfig   `koanf:"logger"`
	Worker   WorkerConfig   `koanf:"worker"`
}

type WorkerConfig struct {
	Interval   time.Duration `koanf:"interval" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required"`
	StaleAfter time.Duration `koanf:"stale_after" validate:"required"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type GatewayConfig struct {
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	AccessToken     string        `koanf:"access_token" validate:"required"`
	Timeout         time.Duration `koanf:"timeout" validate:"required"`
	NotificationURL string        `koanf:"notification_url" validate:"omitempty,url"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int32         `koanf:"max_retries"`
}

type WebhookConfig struct {
	// Secret is optional. Without it signatures are not checked.
	Secret         string        `koanf:"secret"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes" validate:"required"`
	ProcessTimeout time.Duration `koanf:"process_timeout" validate:"required"`
	RetryTransient bool          `koanf:"retry_transient"`
}

type RatesConfig struct {
	BaseURL       string        `koanf:"base_url" validate:"omitempty,url"`
	TTL           time.Duration `koanf:"ttl" validate:"required"`
	Timeout       time.Duration `koanf:"timeout" validate:"required"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
}

type CatalogConfig struct {
	PriceURL string        `koanf:"price_url" validate:"required,url"`
	TTL      time.Duration `koanf:"ttl" validate:"required"`
	Timeout  time.Duration `koanf:"timeout" validate:"required"`
}

type MailerConfig struct {
	BaseURL       string        `koanf:"base_url" validate:"omitempty,url"`
	Token         string        `koanf:"token"`
	OperatorEmail string        `koanf:"operator_email" validate:"omitempty,email"`
	Timeout       time.Duration `koanf:"timeout" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

var defaults = map[string]interface{}{
	"primary.env":                 "dev",
	"server.port":                 "8080",
	"server.read_timeout":         "10s",
	"server.write_timeout":        "30s",
	"server.idle_timeout":         "60s",
	"database.port":               5432,
	"database.ssl_mode":           "disable",
	"database.max_open_conns":     10,
	"database.max_idle_conns":     2,
	"database.conn_max_lifetime":  "1h",
	"database.conn_max_idle_time": "10m",
	"gateway.timeout":             "5s",
	"retry.base_delay":            "200ms",
	"retry.max_retries":           3,
	"webhook.max_body_bytes":      1 << 20,
	"webhook.process_timeout":     "15s",
	"webhook.retry_transient":     true,
	"rates.ttl":                   "10m",
	"rates.timeout":               "3s",
	"catalog.ttl":                 "5m",
	"catalog.timeout":             "3s",
	"mailer.timeout":              "5s",
	"worker.interval":             "1m",
	"worker.batch_size":           50,
	"worker.stale_after":          "10m",
	"logger.level":                "info",
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// NewLogger builds the process logger: text output in dev, JSON elsewhere.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Logger.SlogLevel()}
	if c.Primary.Env == "dev" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func (l LoggerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
