package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every var LoadConfig reads so host env can't leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REGION", "CALLBACK_HOST", "CALLBACK_PORT", "LOG_LEVEL",
		"IDENTITY_ENDPOINT", "IDENTITY_ISSUER_URL", "IDENTITY_TOKEN_URL",
		"IDENTITY_CLIENT_ID", "IDENTITY_CLIENT_SECRET", "IDENTITY_SCOPES",
		"IDENTITY_TIMEOUT", "SHUTDOWN_TIMEOUT", "OTEL_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

// --- LoadConfig ---

func TestLoadConfig(t *testing.T) {
	t.Run("returns defaults with only region set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := LoadConfig("us-east-1")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Region != "us-east-1" {
			t.Errorf("Region: expected %q, got %q", "us-east-1", cfg.Region)
		}
		if cfg.Host != "127.0.0.1" {
			t.Errorf("Host: expected %q, got %q", "127.0.0.1", cfg.Host)
		}
		if cfg.Port != 9090 {
			t.Errorf("Port: expected 9090, got %d", cfg.Port)
		}
		if cfg.Addr() != "127.0.0.1:9090" {
			t.Errorf("Addr: expected %q, got %q", "127.0.0.1:9090", cfg.Addr())
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Errorf("LogLevel: expected info, got %v", cfg.LogLevel)
		}
		if cfg.IdentityTimeout != 30*time.Second {
			t.Errorf("IdentityTimeout: expected 30s, got %v", cfg.IdentityTimeout)
		}
		if cfg.ShutdownTimeout != 10*time.Second {
			t.Errorf("ShutdownTimeout: expected 10s, got %v", cfg.ShutdownTimeout)
		}
	})

	t.Run("derives identity endpoint from region", func(t *testing.T) {
		clearEnv(t)

		cfg, err := LoadConfig("eu-west-1")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		want := "https://bedrock-agentcore.eu-west-1.amazonaws.com"
		if cfg.IdentityEndpoint != want {
			t.Errorf("IdentityEndpoint: expected %q, got %q", want, cfg.IdentityEndpoint)
		}
	})

	t.Run("explicit endpoint wins and loses trailing slash", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("IDENTITY_ENDPOINT", "http://localhost:4566/")

		cfg, err := LoadConfig("us-east-1")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.IdentityEndpoint != "http://localhost:4566" {
			t.Errorf("IdentityEndpoint: expected %q, got %q", "http://localhost:4566", cfg.IdentityEndpoint)
		}
	})

	t.Run("falls back to REGION env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REGION", "ap-south-1")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Region != "ap-south-1" {
			t.Errorf("Region: expected %q, got %q", "ap-south-1", cfg.Region)
		}
	})

	t.Run("flag region overrides REGION env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REGION", "ap-south-1")

		cfg, err := LoadConfig("us-west-2")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Region != "us-west-2" {
			t.Errorf("Region: expected %q, got %q", "us-west-2", cfg.Region)
		}
	})

	t.Run("errors when region is missing", func(t *testing.T) {
		clearEnv(t)

		_, err := LoadConfig("")
		if err == nil {
			t.Fatal("expected error for missing region, got nil")
		}
	})

	t.Run("errors on unparseable port", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALLBACK_PORT", "not-a-port")

		_, err := LoadConfig("us-east-1")
		if err == nil {
			t.Fatal("expected error for bad CALLBACK_PORT, got nil")
		}
		if !strings.Contains(err.Error(), "parse env:") {
			t.Errorf("expected parse env prefix, got %v", err)
		}
	})

	t.Run("errors on out of range port", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALLBACK_PORT", "70000")

		if _, err := LoadConfig("us-east-1"); err == nil {
			t.Fatal("expected error for CALLBACK_PORT 70000, got nil")
		}
	})

	t.Run("parses log level", func(t *testing.T) {
		for name, want := range map[string]slog.Level{
			"debug": slog.LevelDebug,
			"WARN":  slog.LevelWarn,
			"error": slog.LevelError,
			"bogus": slog.LevelInfo,
		} {
			clearEnv(t)
			t.Setenv("LOG_LEVEL", name)

			cfg, err := LoadConfig("us-east-1")
			if err != nil {
				t.Fatalf("LoadConfig failed for %q: %v", name, err)
			}
			if cfg.LogLevel != want {
				t.Errorf("LOG_LEVEL=%q: expected %v, got %v", name, want, cfg.LogLevel)
			}
		}
	})

	t.Run("splits identity scopes", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("IDENTITY_CLIENT_ID", "client")
		t.Setenv("IDENTITY_CLIENT_SECRET", "secret")
		t.Setenv("IDENTITY_TOKEN_URL", "https://auth.example.com/token")
		t.Setenv("IDENTITY_SCOPES", "identity/read,identity/write")

		cfg, err := LoadConfig("us-east-1")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if len(cfg.IdentityScopes) != 2 || cfg.IdentityScopes[1] != "identity/write" {
			t.Errorf("IdentityScopes: got %v", cfg.IdentityScopes)
		}
	})

	t.Run("errors when client secret is missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("IDENTITY_CLIENT_ID", "client")
		t.Setenv("IDENTITY_TOKEN_URL", "https://auth.example.com/token")

		if _, err := LoadConfig("us-east-1"); err == nil {
			t.Fatal("expected error for client id without secret, got nil")
		}
	})

	t.Run("errors when credentials have no token source", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("IDENTITY_CLIENT_ID", "client")
		t.Setenv("IDENTITY_CLIENT_SECRET", "secret")

		if _, err := LoadConfig("us-east-1"); err == nil {
			t.Fatal("expected error for credentials without token url, got nil")
		}
	})

	t.Run("errors when both token url and issuer are set", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("IDENTITY_TOKEN_URL", "https://auth.example.com/token")
		t.Setenv("IDENTITY_ISSUER_URL", "https://auth.example.com")

		if _, err := LoadConfig("us-east-1"); err == nil {
			t.Fatal("expected error for token url and issuer together, got nil")
		}
	})
	t.Run("identity timeout must stay below request timeout", func(t *testing.T) {
		for _, v := range []string{"60s", "2m"} {
			clearEnv(t)
			t.Setenv("IDENTITY_TIMEOUT", v)

			_, err := LoadConfig("us-east-1")
			if err == nil || !strings.Contains(err.Error(), "IDENTITY_TIMEOUT") {
				t.Errorf("IDENTITY_TIMEOUT=%s: expected error, got %v", v, err)
			}
		}

		clearEnv(t)
		t.Setenv("IDENTITY_TIMEOUT", "59s")
		cfg, err := LoadConfig("us-east-1")
		if err != nil {
			t.Fatalf("IDENTITY_TIMEOUT=59s: %v", err)
		}
		if cfg.IdentityTimeout != 59*time.Second {
			t.Errorf("IdentityTimeout: expected 59s, got %s", cfg.IdentityTimeout)
		}
	})
}
