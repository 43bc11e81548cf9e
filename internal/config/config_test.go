package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port: %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode: %q", cfg.GinMode)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: %q", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/" {
		t.Errorf("APIBasePath: %q", cfg.APIBasePath)
	}
	if cfg.HistoryCap != 100 {
		t.Errorf("HistoryCap: %d", cfg.HistoryCap)
	}
	if cfg.Guest.BufferCap != 16 || cfg.Guest.MessageLimit != 10 {
		t.Errorf("Guest caps: %+v", cfg.Guest)
	}
	if cfg.Guest.SessionTTL != 12*time.Hour {
		t.Errorf("Guest.SessionTTL: %v", cfg.Guest.SessionTTL)
	}
	if cfg.LLM.Timeout != 15*time.Second || cfg.LLM.HistoryTurns != 20 {
		t.Errorf("LLM: %+v", cfg.LLM)
	}
	if cfg.AdminToken != "" {
		t.Errorf("AdminToken should default empty")
	}
	if cfg.TokenTTL != 30*24*time.Hour {
		t.Errorf("TokenTTL: %v", cfg.TokenTTL)
	}
}

func TestLoad_EnvOverridesAndNormalization(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("API_BASE_PATH", "api/v1/")
	t.Setenv("GUEST_MESSAGE_LIMIT", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port: %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("invalid GIN_MODE should normalize to release: %q", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("warning alias: %q", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath: %q", cfg.APIBasePath)
	}
	if cfg.Guest.MessageLimit != 3 {
		t.Errorf("Guest.MessageLimit: %d", cfg.Guest.MessageLimit)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORS origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero history cap", "HISTORY_CAP", "0"},
		{"zero guest buffer", "GUEST_BUFFER_CAP", "0"},
		{"zero guest limit", "GUEST_MESSAGE_LIMIT", "0"},
		{"zero rate burst", "RATE_BURST", "0"},
		{"negative rate rps", "RATE_RPS", "-1"},
		{"bad sample ratio", "OTEL_TRACES_SAMPLER_ARG", "2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", tc.key, tc.value)
			}
		})
	}
}
