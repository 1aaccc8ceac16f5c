package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"` // 0 = unlimited
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`   // 0 = off
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Backend      string         `mapstructure:"backend" yaml:"backend"`
	WriteTimeout time.Duration  `mapstructure:"write_timeout" yaml:"write_timeout"`
	Postgres     PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	SQLite       SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
}

type PostgresConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	Driver         string `mapstructure:"driver" yaml:"driver"` // "pq" or "pgx"
	MigrationsPath string `mapstructure:"migrations_path" yaml:"migrations_path"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type NotificationsConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Load reads an optional .env file, then defaults, BOOKS_* env vars and the
// YAML file named by BOOKS_CONFIG, if any.
func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.max_connections", 0)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 0)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.write_timeout", 5*time.Second)
	v.SetDefault("store.postgres.url", "")
	v.SetDefault("store.postgres.driver", "pq")
	v.SetDefault("store.postgres.migrations_path", "migrations")
	v.SetDefault("store.sqlite.path", "data/books.db")
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.base_url", "https://ntfy.sh/books")
	v.SetDefault("notifications.timeout", 2*time.Second)

	v.SetEnvPrefix("BOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The variables the service always read keep working.
	if err := v.BindEnv("store.postgres.url", "BOOKS_STORE_POSTGRES_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}
	if err := v.BindEnv("store.postgres.migrations_path", "BOOKS_STORE_POSTGRES_MIGRATIONS_PATH", "DATABASE_MIGRATIONS_PATH"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if configPath := os.Getenv("BOOKS_CONFIG"); configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Store.Postgres.URL == "" {
			return errors.New("invalid config: store.postgres.url (or DATABASE_URL) is required for the postgres backend")
		}
		if c.Store.Postgres.Driver != "pq" && c.Store.Postgres.Driver != "pgx" {
			return fmt.Errorf("invalid config: unknown store.postgres.driver %q", c.Store.Postgres.Driver)
		}
	default:
		return fmt.Errorf("invalid config: unknown store.backend %q", c.Store.Backend)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid config: http.port %d out of range", c.HTTP.Port)
	}
	return nil
}

// Write dumps cfg as YAML. The postgres URL is masked since it may carry a password.
func Write(w io.Writer, cfg Config) error {
	if cfg.Store.Postgres.URL != "" {
		cfg.Store.Postgres.URL = "***"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}
