// Package config loads runtime settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/exalmatuz/bw-reports-agent/internal/logger"
)

// DefaultPrefix is the index namespace used when a request does not supply one.
const DefaultPrefix = "bw_idx"

type Config struct {
	RedisAddr     string
	RedisDB       int
	RedisPassword string

	// TimeZone interprets timezone-less query times and renders _date_human.
	TimeZone *time.Location

	ListenAddr string
	Prefix     string

	Logging logger.Config
}

// Load reads .env (if present) and the environment. A malformed numeric or
// time zone value is an error rather than a silent default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	db, err := getEnvIntOrDefault("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	tzName := getEnvOrDefault("TZ", "America/Monterrey")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ %q: %w", tzName, err)
	}

	cfg := &Config{
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:       db,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		TimeZone:      tz,
		ListenAddr:    getEnvOrDefault("LISTEN_ADDR", "127.0.0.1:8287"),
		Prefix:        getEnvOrDefault("BW_PREFIX", DefaultPrefix),
		Logging: logger.Config{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Debug:  getEnvBoolOrDefault("DEBUG", false),
			Output: getEnvOrDefault("LOG_OUTPUT", "stdout"),
		},
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}
