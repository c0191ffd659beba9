//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) failed: %v", err)
	}
	if cfg.AI.Provider != "ollama" || cfg.AI.BaseURL != "http://localhost:11434" {
		t.Errorf("unexpected ai defaults: %+v", cfg.AI)
	}
	if cfg.AI.Model != "deepseek-coder:1.3b" {
		t.Errorf("unexpected default model %q", cfg.AI.Model)
	}
	if cfg.AI.Timeout != 120*time.Second {
		t.Errorf("expected 120s timeout, got %s", cfg.AI.Timeout)
	}
	if cfg.Workspace.Storage != StorageMemory {
		t.Errorf("expected memory storage, got %q", cfg.Workspace.Storage)
	}
	if cfg.HTTP.Port != 8080 || cfg.HTTP.MaxUploadBytes != 10<<20 {
		t.Errorf("unexpected http defaults: %+v", cfg.HTTP)
	}
}

func TestParse_YAML(t *testing.T) {
	raw := `
http:
  port: 9000
ai:
  provider: OpenAI
  model: llama3
  timeout: 30s
workspace:
  storage: redis
redis:
  url: localhost:6379
  ttl: 1h
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.AI.Provider != "openai" || cfg.AI.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected ai config: %+v", cfg.AI)
	}
	if cfg.AI.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.AI.Timeout)
	}
	if cfg.Redis.TTL != time.Hour {
		t.Errorf("expected 1h ttl, got %s", cfg.Redis.TTL)
	}
}

func TestParse_Validation(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{"gemini without key", "ai:\n  provider: gemini\n", "api_key"},
		{"unknown provider", "ai:\n  provider: nope\n", "not supported"},
		{"postgres without url", "workspace:\n  storage: postgres\n", "database.url"},
		{"redis without url", "workspace:\n  storage: redis\n", "redis.url"},
		{"bad encryption key", "security:\n  encryption_key: short\n", "encryption_key"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file is fine in dev mode", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"), true)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if !cfg.Runtime.Dev {
			t.Errorf("expected dev runtime flag")
		}
	})

	t.Run("missing file fails outside dev mode", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"), false); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("reads the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(path, false)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("expected debug level, got %q", cfg.Log.Level)
		}
	})
}
