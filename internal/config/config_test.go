package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Dispatch.SearchRadiusKm != 5 {
		t.Errorf("expected radius 5, got %v", cfg.Dispatch.SearchRadiusKm)
	}
	if cfg.Dispatch.OfferTTL != 2*time.Minute {
		t.Errorf("expected offer ttl 2m, got %v", cfg.Dispatch.OfferTTL)
	}
	if cfg.Events.Broker != BrokerNone {
		t.Errorf("expected broker none, got %s", cfg.Events.Broker)
	}
	if cfg.Events.RabbitMQExchange != "ride_topic" {
		t.Errorf("expected exchange ride_topic, got %s", cfg.Events.RabbitMQExchange)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DISPATCH_SEARCH_RADIUS_KM", "7.5")
	t.Setenv("DISPATCH_OFFER_TTL", "45s")
	t.Setenv("EVENTS_BROKER", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	if cfg.Dispatch.SearchRadiusKm != 7.5 {
		t.Errorf("expected radius 7.5, got %v", cfg.Dispatch.SearchRadiusKm)
	}
	if cfg.Dispatch.OfferTTL != 45*time.Second {
		t.Errorf("expected offer ttl 45s, got %v", cfg.Dispatch.OfferTTL)
	}
	if cfg.Events.Broker != BrokerKafka {
		t.Errorf("expected broker kafka, got %s", cfg.Events.Broker)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("expected fallback redis db 0, got %d", cfg.Redis.DB)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "AUTH_JWT_SECRET",
		},
		{
			name:    "unknown broker",
			mutate:  func(c *Config) { c.Events.Broker = "nats" },
			wantErr: "EVENTS_BROKER",
		},
		{
			name: "active ttl shorter than offer ttl",
			mutate: func(c *Config) {
				c.Dispatch.OfferTTL = time.Hour
				c.Dispatch.ActiveTTL = time.Minute
			},
			wantErr: "DISPATCH_ACTIVE_TTL",
		},
		{
			name:    "non-positive radius",
			mutate:  func(c *Config) { c.Dispatch.SearchRadiusKm = 0 },
			wantErr: "DISPATCH_SEARCH_RADIUS_KM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.Auth.JWTSecret = "secret"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Load()
	cfg.Auth.JWTSecret = ""
	cfg.RateLimit.PerMinute = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "AUTH_JWT_SECRET") || !strings.Contains(err.Error(), "RATE_LIMIT_PER_MINUTE") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("RIDE_DOTENV_PROBE=found\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(nested); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("RIDE_DOTENV_PROBE", "")
	os.Unsetenv("RIDE_DOTENV_PROBE")

	path := LoadDotEnv(3)
	if path == "" {
		t.Fatal("expected .env to be found")
	}
	if got := os.Getenv("RIDE_DOTENV_PROBE"); got != "found" {
		t.Errorf("expected probe value found, got %q", got)
	}
}
