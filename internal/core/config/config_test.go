package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	c := FromEnv()
	c.RouteAPIKey = "key"
	return c
}

func TestFromEnv_Defaults(t *testing.T) {
	c := FromEnv()
	if c.StoreDriver != "redis" {
		t.Fatalf("StoreDriver = %q", c.StoreDriver)
	}
	if c.MaxWorkers != 8 {
		t.Fatalf("MaxWorkers = %d", c.MaxWorkers)
	}
	if c.StoreTimeout != 2*time.Second {
		t.Fatalf("StoreTimeout = %v", c.StoreTimeout)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("PLANNER_MAX_WORKERS", "3")
	t.Setenv("PLANNER_AWAIT_TIMEOUT", "15s")
	t.Setenv("EVENTS_ENABLED", "yes")

	c := FromEnv()
	if c.StoreDriver != "postgres" {
		t.Fatalf("StoreDriver = %q", c.StoreDriver)
	}
	if c.MaxWorkers != 3 {
		t.Fatalf("MaxWorkers = %d", c.MaxWorkers)
	}
	if c.AwaitTimeout != 15*time.Second {
		t.Fatalf("AwaitTimeout = %v", c.AwaitTimeout)
	}
	if !c.Events.Enabled {
		t.Fatal("Events.Enabled = false")
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := validConfig()
	c.RouteAPIKey = ""
	if err := c.Validate(); err == nil {
		t.Fatal("missing route api key accepted")
	}

	c = validConfig()
	c.StoreDriver = "sqlite"
	if err := c.Validate(); err == nil {
		t.Fatal("unknown store driver accepted")
	}

	c = validConfig()
	c.StoreDriver = "postgres"
	c.DatabaseURL = ""
	if err := c.Validate(); err == nil {
		t.Fatal("postgres driver without database url accepted")
	}

	c = validConfig()
	c.MaxWorkers = 0
	if err := c.Validate(); err == nil {
		t.Fatal("zero workers accepted")
	}
}
