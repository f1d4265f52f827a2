package authcore

import (
	"testing"
	"time"
)

func validHostedConfig() Config {
	cfg := defaultConfig()
	cfg.HTTP.BaseURL = "https://studio.example.com"
	return cfg
}

func TestDefaultConfigNeedsOnlyBaseURL(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("hosted default without BaseURL must not validate")
	}
	cfg.HTTP.BaseURL = "https://studio.example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "cloud" }},
		{"relative base url", func(c *Config) { c.HTTP.BaseURL = "/api" }},
		{"non-http scheme", func(c *Config) { c.HTTP.BaseURL = "ftp://host" }},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }},
		{"blank user agent", func(c *Config) { c.HTTP.UserAgent = "  " }},
		{"no storage path", func(c *Config) { c.Storage.Path = ""; c.Storage.InMemory = false }},
		{"zero max attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }},
		{"negative cooldown", func(c *Config) { c.Lockout.Cooldown = -time.Minute }},
		{"audit enabled without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validHostedConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateLocalModeSkipsBaseURL(t *testing.T) {
	cfg := validHostedConfig()
	cfg.Mode = ModeLocal
	cfg.HTTP.BaseURL = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("local mode must not require a BaseURL: %v", err)
	}
}

func TestValidateInMemorySkipsPath(t *testing.T) {
	cfg := validHostedConfig()
	cfg.Storage.Path = ""
	cfg.Storage.InMemory = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("in-memory storage must not require a path: %v", err)
	}
}
