// internal/config/config.go
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"user-ingest/internal/apperrors"
)

const redacted = "******"

type Config struct {
	HTTP struct {
		Port            int           `yaml:"port" env:"PORT" env-default:"8080"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	} `yaml:"http"`

	Database struct {
		URL             string        `yaml:"url" env:"DATABASE_URL"`
		MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
		QueryTimeout    time.Duration `yaml:"query_timeout" env:"DB_QUERY_TIMEOUT" env-default:"5s"`
	} `yaml:"database"`

	RabbitMQ struct {
		URL          string `yaml:"url" env:"RABBITMQ_URL"`
		Queue        string `yaml:"queue" env:"RABBITMQ_QUEUE" env-default:"ingestion-topic-sub"`
		ConsumerTag  string `yaml:"consumer_tag" env:"RABBITMQ_CONSUMER_TAG" env-default:"ingestion-listener"`
		Prefetch     int    `yaml:"prefetch" env:"RABBITMQ_PREFETCH" env-default:"10"`
		DeclareQueue bool   `yaml:"declare_queue" env:"RABBITMQ_DECLARE_QUEUE" env-default:"false"`
	} `yaml:"rabbitmq"`

	Workers int `yaml:"workers" env:"LISTENER_WORKERS" env-default:"4"`

	Metrics struct {
		Port          int           `yaml:"port" env:"METRICS_PORT" env-default:"9090"`
		QueuePollRate time.Duration `yaml:"queue_poll_rate" env:"METRICS_QUEUE_POLL_RATE" env-default:"10s"`
	} `yaml:"metrics"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	} `yaml:"auth"`

	Log struct {
		Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		FormatJSON bool   `yaml:"format_json" env:"LOG_FORMAT_JSON" env-default:"true"`
		Rotation   struct {
			File       string `yaml:"file" env:"LOG_FILE"`
			MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE" env-default:"10"`
			MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
			MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE" env-default:"7"`
		} `yaml:"rotation"`
	} `yaml:"log"`
}

// LoadConfig reads the YAML file at path, when given, and applies environment
// overrides on top of it. An empty path loads from the environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: config file %s: %w", apperrors.ErrConfiguration, path, err)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to read config: %w", apperrors.ErrConfiguration, err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to read env: %w", apperrors.ErrConfiguration, err)
	}
	return cfg, nil
}

func MustLoadConfig(path string) *Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// ValidateAPI checks the settings the HTTP service cannot start without.
func (c *Config) ValidateAPI() error {
	if c.Database.URL == "" {
		return fmt.Errorf("%w: DATABASE_URL is not set", apperrors.ErrConfiguration)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", apperrors.ErrConfiguration, c.HTTP.Port)
	}
	return nil
}

// ValidateListener checks the settings the ingestion listener cannot start
// without. The broker URL is the credential reference and must be present
// before anything is dialed.
func (c *Config) ValidateListener() error {
	if c.RabbitMQ.URL == "" {
		return fmt.Errorf("%w: RABBITMQ_URL is not set", apperrors.ErrConfiguration)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("%w: DATABASE_URL is not set", apperrors.ErrConfiguration)
	}
	if c.RabbitMQ.Queue == "" {
		return fmt.Errorf("%w: RABBITMQ_QUEUE is empty", apperrors.ErrConfiguration)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", apperrors.ErrConfiguration, c.Workers)
	}
	return nil
}

// Redacted returns a copy with credentials masked, suitable for printing.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.URL != "" {
		out.Database.URL = redacted
	}
	if out.RabbitMQ.URL != "" {
		out.RabbitMQ.URL = redacted
	}
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = redacted
	}
	return out
}

// Dump renders the redacted config as YAML.
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FetchConfigPath returns the -config flag value, falling back to CONFIG_PATH.
func FetchConfigPath() string {
	var result string

	flag.StringVar(&result, "config", "", "Path to config file")
	flag.Parse()

	if result == "" {
		result = os.Getenv("CONFIG_PATH")
	}

	return result
}
