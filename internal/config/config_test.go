package config

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")
	t.Setenv("COSTING_STRATEGY", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default ttl 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.CostingStrategy != "lifetime-average" {
		t.Fatalf("expected default strategy, got %s", cfg.CostingStrategy)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COSTING_STRATEGY", "fifo")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "nonsense")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.CostingStrategy != "fifo" {
		t.Fatalf("expected fifo strategy, got %s", cfg.CostingStrategy)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("bad ttl must fall back to 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	if log := NewLogger("debug"); log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if log := NewLogger("bogus"); log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("unknown level must fall back to info, got %s", log.GetLevel())
	}
}
