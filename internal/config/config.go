// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int   `yaml:"port"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // ollama|openai|gemini|noop
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BotConfig struct {
	Token   string `yaml:"token"`
	Workers int    `yaml:"workers"` // polling workers
}

type SecurityConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
	EncryptionKey string        `yaml:"encryption_key"`
}

type WorkspaceConfig struct {
	Storage           string        `yaml:"storage"` // memory|redis|postgres
	IdleTTL           time.Duration `yaml:"idle_ttl"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	Retention         time.Duration `yaml:"retention"` // stored histories older than this are purged; 0 keeps them
	MessagesPerMinute int           `yaml:"messages_per_minute"`
	UploadsPerMinute  int           `yaml:"uploads_per_minute"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	AI        AIConfig        `yaml:"ai"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Bot       BotConfig       `yaml:"bot"`
	Security  SecurityConfig  `yaml:"security"`
	Workspace WorkspaceConfig `yaml:"workspace"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// LoadConfig reads the YAML file at path. A missing file is not an error in
// dev mode: defaults are enough to talk to a local Ollama.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if !(dev && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		b = nil
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		cfg.HTTP.MaxUploadBytes = 10 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "ollama"
	}
	if cfg.AI.BaseURL == "" {
		switch cfg.AI.Provider {
		case "ollama":
			cfg.AI.BaseURL = "http://localhost:11434"
		case "openai":
			cfg.AI.BaseURL = "http://localhost:11434/v1"
		}
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.Model = "gemini-2.0-flash"
		default:
			cfg.AI.Model = "deepseek-coder:1.3b"
		}
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 120 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}

	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}

	if cfg.Security.SessionTTL <= 0 {
		cfg.Security.SessionTTL = 30 * 24 * time.Hour
	}

	cfg.Workspace.Storage = strings.ToLower(strings.TrimSpace(cfg.Workspace.Storage))
	if cfg.Workspace.Storage == "" {
		cfg.Workspace.Storage = StorageMemory
	}
	if cfg.Workspace.IdleTTL <= 0 {
		cfg.Workspace.IdleTTL = 2 * time.Hour
	}
	if cfg.Workspace.SweepInterval <= 0 {
		cfg.Workspace.SweepInterval = 10 * time.Minute
	}
	if cfg.Workspace.MessagesPerMinute <= 0 {
		cfg.Workspace.MessagesPerMinute = 30
	}
	if cfg.Workspace.UploadsPerMinute <= 0 {
		cfg.Workspace.UploadsPerMinute = 10
	}
}

func (cfg *Config) validate() error {
	switch cfg.AI.Provider {
	case "ollama", "openai", "noop":
	case "gemini":
		if cfg.AI.APIKey == "" {
			return errors.New("ai.api_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("ai.provider %q is not supported", cfg.AI.Provider)
	}

	switch cfg.Workspace.Storage {
	case StorageMemory:
	case StorageRedis:
		if cfg.Redis.URL == "" {
			return errors.New("redis.url is required for redis workspace storage")
		}
	case StoragePostgres:
		if cfg.Database.URL == "" {
			return errors.New("database.url is required for postgres workspace storage")
		}
	default:
		return fmt.Errorf("workspace.storage %q is not supported", cfg.Workspace.Storage)
	}

	if k := len(cfg.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24, or 32 bytes; got %d", k)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}
