// Package config loads the ledger service configuration from environment
// variables and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreBolt     = "bolt"
)

type Config struct {
	Store    StoreConfig
	Catalog  CatalogConfig
	Kafka    KafkaConfig
	HTTPAddr string
	LogLevel slog.Level

	// PostMaxAttempts bounds how often a post is retried after losing a
	// numbering race.
	PostMaxAttempts int
}

type StoreConfig struct {
	Backend     string
	DatabaseURL string
	SQLitePath  string
	BoltPath    string
}

type CatalogConfig struct {
	Path  string
	Watch bool
}

// KafkaConfig is optional. With no brokers, events go to the log.
type KafkaConfig struct {
	Brokers     []string
	PostedTopic string
	AlertsTopic string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded if present; an explicit envPath must exist.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	attempts, err := parseIntEnv("POST_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnvOrDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	watch, err := parseBoolEnv("CATALOG_WATCH", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnvOrDefault("LEDGER_STORE", StoreMemory)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			SQLitePath:  getEnvOrDefault("SQLITE_PATH", "./data/ledger.db"),
			BoltPath:    getEnvOrDefault("BOLT_PATH", "./data/ledger.bolt"),
		},
		Catalog: CatalogConfig{
			Path:  getEnvOrDefault("CATALOG_PATH", "./catalog.yaml"),
			Watch: watch,
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			PostedTopic: getEnvOrDefault("KAFKA_TOPIC_POSTED", "voucher.posted"),
			AlertsTopic: getEnvOrDefault("KAFKA_TOPIC_ALERTS", "ledger.integrity_alert"),
		},
		HTTPAddr:        getEnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        level,
		PostMaxAttempts: attempts,
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres store")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH is required for the sqlite store")
		}
	case StoreBolt:
		if c.Store.BoltPath == "" {
			problems = append(problems, "BOLT_PATH is required for the bolt store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown LEDGER_STORE %q (want memory, postgres, sqlite or bolt)", c.Store.Backend))
	}

	if c.Catalog.Path == "" {
		problems = append(problems, "CATALOG_PATH is required")
	}
	if c.PostMaxAttempts < 1 {
		problems = append(problems, "POST_MAX_ATTEMPTS must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value for %s: %s", key, value)
	}
	return parsed, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
