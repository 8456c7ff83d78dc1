package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	KindOllama = "ollama"
	KindGroq   = "groq"
	KindOpenAI = "openai"
	KindGemini = "gemini"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Config holds all configuration for codeguru.
type Config struct {
	// Languages restricts analysis to these tags; empty means all.
	Languages   []string                  `yaml:"languages"`
	MaxFileSize int64                     `yaml:"max_file_size"`
	Depth       string                    `yaml:"depth"`
	Order       []string                  `yaml:"provider_order"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Generation  GenerationConfig          `yaml:"generation"`
	Cache       CacheConfig               `yaml:"cache"`
	Health      HealthConfig              `yaml:"health"`
	Index       IndexConfig               `yaml:"index"`
	Logging     LoggingConfig             `yaml:"logging"`
}

// ProviderConfig describes one generation backend.
type ProviderConfig struct {
	Kind    string            `yaml:"kind"`
	BaseURL string            `yaml:"base_url"`
	Model   string            `yaml:"model"`
	Models  map[string]string `yaml:"models"` // per depth label
	// APIKeyEnv names the environment variable holding the credential.
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// GenerationConfig holds sampling parameters.
type GenerationConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// CacheConfig holds response cache configuration.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
	Backend  string        `yaml:"backend"` // "memory", "sqlite", "bolt"
	Path     string        `yaml:"path"`
	// MaxEntries bounds the persistent tier.
	MaxEntries int `yaml:"max_entries"`
}

// HealthConfig holds provider health tracking configuration.
type HealthConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	MaxRetryWait     time.Duration `yaml:"max_retry_wait"`
	AttemptTimeout   time.Duration `yaml:"attempt_timeout"`
}

// IndexConfig holds batch analysis configuration.
type IndexConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Workers  int      `yaml:"workers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ConfigError reports an invalid setting. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize: 500 * 1024,
		Depth:       "detailed",
		Order:       []string{"ollama", "groq", "gemini"},
		Providers: map[string]ProviderConfig{
			"ollama": {
				Kind:    KindOllama,
				BaseURL: "http://localhost:11434",
				Model:   "qwen2.5-coder:7b",
				Models: map[string]string{
					"simple":   "llama3.2:3b",
					"detailed": "qwen2.5-coder:7b",
					"deep":     "qwen2.5-coder:14b",
				},
				Timeout: 120 * time.Second,
			},
			"groq": {
				Kind:      KindGroq,
				Model:     "llama-3.1-70b-versatile",
				APIKeyEnv: "GROQ_API_KEY",
				Timeout:   60 * time.Second,
			},
			"gemini": {
				Kind:      KindGemini,
				Model:     "gemini-2.0-flash",
				APIKeyEnv: "GEMINI_API_KEY",
				Timeout:   60 * time.Second,
			},
		},
		Generation: GenerationConfig{
			Temperature: 0.3,
			MaxTokens:   2048,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        time.Hour,
			Capacity:   512,
			Backend:    BackendMemory,
			MaxEntries: 10000,
		},
		Health: HealthConfig{
			FailureThreshold: 3,
			Cooldown:         60 * time.Second,
			MaxRetryWait:     30 * time.Second,
			AttemptTimeout:   60 * time.Second,
		},
		Index: IndexConfig{
			Excludes: []string{"**/*.min.js", "**/testdata/**"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file over the defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Field: path, Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads .env from dir, then codeguru.yaml or
// .codeguru/config.yaml, falling back to the defaults.
func LoadFromDir(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	for _, path := range []string{
		filepath.Join(dir, "codeguru.yaml"),
		filepath.Join(dir, ".codeguru", "config.yaml"),
	} {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return &ConfigError{Field: "max_file_size", Reason: "must be positive"}
	}
	if len(c.Order) == 0 {
		return &ConfigError{Field: "provider_order", Reason: "at least one provider is required"}
	}
	seen := make(map[string]bool)
	for _, name := range c.Order {
		if seen[name] {
			return &ConfigError{Field: "provider_order", Reason: fmt.Sprintf("%q listed twice", name)}
		}
		seen[name] = true
		p, ok := c.Providers[name]
		if !ok {
			return &ConfigError{Field: "provider_order", Reason: fmt.Sprintf("provider %q is not defined", name)}
		}
		switch p.Kind {
		case KindOllama, KindGroq, KindOpenAI, KindGemini:
		default:
			return &ConfigError{Field: "providers." + name + ".kind", Reason: fmt.Sprintf("unknown kind %q", p.Kind)}
		}
		if p.Model == "" {
			return &ConfigError{Field: "providers." + name + ".model", Reason: "is required"}
		}
		if p.Timeout < 0 {
			return &ConfigError{Field: "providers." + name + ".timeout", Reason: "must not be negative"}
		}
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case BackendMemory, BackendSQLite, BackendBolt:
		default:
			return &ConfigError{Field: "cache.backend", Reason: fmt.Sprintf("unknown backend %q", c.Cache.Backend)}
		}
		if c.Cache.Capacity <= 0 {
			return &ConfigError{Field: "cache.capacity", Reason: "must be positive"}
		}
		if c.Cache.TTL < 0 {
			return &ConfigError{Field: "cache.ttl", Reason: "must not be negative"}
		}
	}
	if c.Health.FailureThreshold <= 0 {
		return &ConfigError{Field: "health.failure_threshold", Reason: "must be positive"}
	}
	if c.Health.Cooldown < 0 || c.Health.MaxRetryWait < 0 || c.Health.AttemptTimeout < 0 {
		return &ConfigError{Field: "health", Reason: "durations must not be negative"}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "logging.level", Reason: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}

// APIKey returns the provider's credential from the environment, or "" when
// the provider needs none or the variable is unset.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
}

// DBPath returns the path to the analysis index database under root.
func DBPath(root string) string {
	return filepath.Join(root, ".codeguru", "index.db")
}
