package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Store       StoreConfig
	Database    DatabaseConfig
	Admin       AdminConfig
	Kafka       KafkaConfig
	// ORDER_WEBHOOK_URL: every new order is POSTed here as an event (optional)
	OrderWebhookURL string
	BodyLimitBytes  int64
}

// StoreConfig selects and tunes the document backend
type StoreConfig struct {
	Backend      string        // STORE_BACKEND: file (default) or postgres
	Path         string        // DB_PATH: JSON document for the file backend
	StrictWrites bool          // STRICT_WRITES: answer 500 when a persist fails instead of best-effort 200
	WriteTimeout time.Duration // WRITE_TIMEOUT: how long a handler waits for its mutation to be applied
}

type DatabaseConfig struct {
	URL      string // DATABASE_URL wins over the discrete fields when set
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// AdminConfig is the shared secret gating admin reads/writes. Both empty disables the guard.
type AdminConfig struct {
	PIN     string // ADMIN_PIN: compared verbatim
	PINHash string // ADMIN_PIN_HASH: bcrypt hash of the same secret
	Header  string // ADMIN_HEADER
}

// Enabled reports whether a secret is configured.
func (c AdminConfig) Enabled() bool {
	return c.PIN != "" || c.PINHash != ""
}

type KafkaConfig struct {
	Brokers []string // KAFKA_BROKERS: comma separated; empty disables publishing
	Topic   string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORE_BACKEND", BackendFile)
	viper.SetDefault("DB_PATH", "data.json")
	viper.SetDefault("STRICT_WRITES", false)
	viper.SetDefault("WRITE_TIMEOUT", "10s")
	viper.SetDefault("BODY_LIMIT_BYTES", 3<<20)
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("ADMIN_HEADER", "x-admin-pin")
	viper.SetDefault("KAFKA_TOPIC", "storefront-events")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	writeTimeout, err := time.ParseDuration(getEnvOrViper("WRITE_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Store: StoreConfig{
			Backend:      strings.ToLower(strings.TrimSpace(getEnvOrViper("STORE_BACKEND", BackendFile))),
			Path:         getEnvOrViper("DB_PATH", "data.json"),
			StrictWrites: viper.GetBool("STRICT_WRITES"),
			WriteTimeout: writeTimeout,
		},
		Database: DatabaseConfig{
			URL:      strings.TrimSpace(getEnvOrViper("DATABASE_URL", "")),
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "arkilino"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Admin: AdminConfig{
			PIN:     getEnvOrViper("ADMIN_PIN", ""),
			PINHash: strings.TrimSpace(getEnvOrViper("ADMIN_PIN_HASH", "")),
			Header:  getEnvOrViper("ADMIN_HEADER", "x-admin-pin"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnvOrViper("KAFKA_BROKERS", "")),
			Topic:   getEnvOrViper("KAFKA_TOPIC", "storefront-events"),
		},
		OrderWebhookURL: strings.TrimSpace(getEnvOrViper("ORDER_WEBHOOK_URL", "")),
		BodyLimitBytes:  viper.GetInt64("BODY_LIMIT_BYTES"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("DB_PATH is required for the file backend")
		}
	case BackendPostgres:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", c.Store.Backend, BackendFile, BackendPostgres)
	}
	if c.Admin.PIN != "" && c.Admin.PINHash != "" {
		return fmt.Errorf("set only one of ADMIN_PIN and ADMIN_PIN_HASH")
	}
	if c.Admin.Header == "" {
		return fmt.Errorf("ADMIN_HEADER must not be empty")
	}
	if c.Store.WriteTimeout <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT must be positive")
	}
	if c.BodyLimitBytes <= 0 {
		c.BodyLimitBytes = 3 << 20
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
