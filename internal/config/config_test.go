package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeguru/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Health.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Health.Cooldown)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromDirOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".codeguru"), 0o755))
	yml := `
languages: [python, go]
provider_order: [local]
providers:
  local:
    kind: ollama
    model: codellama
    models:
      deep: codellama:34b
    timeout: 5s
cache:
  ttl: 10m
  backend: bolt
health:
  cooldown: 2m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codeguru", "config.yaml"), []byte(yml), 0o644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "go"}, cfg.Languages)
	assert.Equal(t, []string{"local"}, cfg.Order)
	assert.Equal(t, 5*time.Second, cfg.Providers["local"].Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 2*time.Minute, cfg.Health.Cooldown)
	assert.Equal(t, 512, cfg.Cache.Capacity, "unset fields keep defaults")

	r, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "python"}, r.Languages())

	cc := cfg.ClientConfig()
	assert.Equal(t, 5*time.Second, cc.Timeouts["local"])
	assert.Equal(t, 10*time.Minute, cc.CacheTTL)
}

func TestLoadFromDirReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CODEGURU_TEST_KEY=secret\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CODEGURU_TEST_KEY") })

	_, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "secret", ProviderConfig{APIKeyEnv: "CODEGURU_TEST_KEY"}.APIKey())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty order", func(c *Config) { c.Order = nil }, "provider_order"},
		{"undefined provider", func(c *Config) { c.Order = []string{"nope"} }, "provider_order"},
		{"duplicate provider", func(c *Config) { c.Order = []string{"ollama", "ollama"} }, "provider_order"},
		{"bad kind", func(c *Config) {
			p := c.Providers["ollama"]
			p.Kind = "carrier-pigeon"
			c.Providers["ollama"] = p
		}, "providers.ollama.kind"},
		{"bad backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }, "cache.capacity"},
		{"zero threshold", func(c *Config) { c.Health.FailureThreshold = 0 }, "health.failure_threshold"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codeguru.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: [unclosed"), 0o644))
	_, err := Load(path)
	var ce *ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestRegistryRejectsUnknownLanguage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Languages = []string{"cobol"}
	_, err := cfg.Registry()
	var ce *ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestBuildProvidersSkipsMissingCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["groq"] = ProviderConfig{Kind: KindGroq, Model: "m", APIKeyEnv: "CODEGURU_UNSET_KEY"}
	cfg.Order = []string{"ollama", "groq"}

	providers, skipped, err := cfg.BuildProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "ollama", providers[0].Name())
	assert.Equal(t, []string{"groq"}, skipped)
}

func TestOpenCacheBackends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendMemory, BackendSQLite, BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Cache.Backend = backend
			cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

			st, closeFn, err := cfg.OpenCache(nil)
			require.NoError(t, err)
			defer closeFn()

			require.NoError(t, st.Set(ctx, cache.Entry{Key: "k", Response: "v", CreatedAt: time.Now()}))
			e, ok, err := st.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "v", e.Response)
		})
	}

	cfg := DefaultConfig()
	cfg.Cache.Enabled = false
	st, _, err := cfg.OpenCache(nil)
	require.NoError(t, err)
	assert.Equal(t, cache.Nop{}, st)
}
