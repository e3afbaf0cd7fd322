package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	DBDriver string
	DBDSN    string
	LogLevel string
	LogFile  string
	SeedDemo bool

	TxTimeout time.Duration
	TxRetries int

	KafkaBrokers   []string
	KafkaTopic     string
	OutboxInterval time.Duration
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Load reads the process configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:       getEnv("PORT", "8080"),
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:      getEnv("DB_DSN", "motodean.db"), // sqlite file in project root
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),
		KafkaTopic: getEnv("KAFKA_TOPIC", "motodean.events"),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (want sqlite or postgres)", cfg.DBDriver)
	}

	var err error
	if cfg.TxTimeout, err = time.ParseDuration(getEnv("TX_TIMEOUT", "5s")); err != nil {
		return Config{}, fmt.Errorf("invalid TX_TIMEOUT: %w", err)
	}
	if cfg.TxRetries, err = strconv.Atoi(getEnv("TX_RETRIES", "3")); err != nil || cfg.TxRetries < 0 {
		return Config{}, fmt.Errorf("invalid TX_RETRIES %q", getEnv("TX_RETRIES", "3"))
	}
	if cfg.OutboxInterval, err = time.ParseDuration(getEnv("OUTBOX_INTERVAL", "5s")); err != nil {
		return Config{}, fmt.Errorf("invalid OUTBOX_INTERVAL: %w", err)
	}
	if cfg.SeedDemo, err = strconv.ParseBool(getEnv("SEED_DEMO", "true")); err != nil {
		return Config{}, fmt.Errorf("invalid SEED_DEMO: %w", err)
	}
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}
	return cfg, nil
}
