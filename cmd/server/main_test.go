package main

import (
	"strings"
	"testing"

	"growledger/backend/internal/config"
)

func TestValidateSecurityConfig(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: "short"}); err == nil {
		t.Fatal("short AUTH_SECRET must be rejected")
	}
	if err := validateSecurityConfig(config.Config{}); err == nil {
		t.Fatal("empty AUTH_SECRET must be rejected")
	}
	if err := validateSecurityConfig(config.Config{AuthSecret: strings.Repeat("x", 32)}); err != nil {
		t.Fatalf("32-char secret must pass: %v", err)
	}
}
