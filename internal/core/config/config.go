// Package config loads the planner configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type EventsCfg struct {
	Enabled bool
	Brokers string `validate:"required_if=Enabled true"`
	Topic   string `validate:"required_if=Enabled true"`
	Queue   int
}

type Config struct {
	LogLevel string `validate:"omitempty,oneof=debug info warn error"`

	// Route provider (HAFAS-style trip endpoint).
	RouteBaseURL string `validate:"required,url"`
	RouteAPIKey  string `validate:"required"`

	// Forward/reverse geocoder (Nominatim-style).
	GeocoderURL string `validate:"required,url"`

	// Trip store backend.
	StoreDriver string `validate:"oneof=redis postgres"`
	RedisAddr   string `validate:"required_if=StoreDriver redis"`
	DatabaseURL string `validate:"required_if=StoreDriver postgres"`

	// Planner dispatch.
	MaxWorkers   int           `validate:"gt=0"`
	AwaitTimeout time.Duration // zero means block without deadline
	StoreTimeout time.Duration `validate:"gt=0"`

	MetricsEnabled bool
	MetricsAddr    string

	Events EventsCfg
}

func FromEnv() Config {
	return Config{
		LogLevel: getenv("LOG_LEVEL", "info"),

		RouteBaseURL: getenv("ROUTE_BASE_URL", "https://www.rmv.de/hapi/trip"),
		RouteAPIKey:  getenv("ROUTE_API_KEY", ""),

		GeocoderURL: getenv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),

		StoreDriver: getenv("STORE_DRIVER", "redis"),
		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		MaxWorkers:   getint("PLANNER_MAX_WORKERS", 8),
		AwaitTimeout: getduration("PLANNER_AWAIT_TIMEOUT", 0),
		StoreTimeout: getduration("STORE_OP_TIMEOUT", 2*time.Second),

		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),

		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "trip-store-changes"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
	}
}

// Validate checks the struct tags and reports the first violation.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := v.Struct(c.Events); err != nil {
		return fmt.Errorf("config: events: %w", err)
	}
	return nil
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
