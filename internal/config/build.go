package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"codeguru/internal/analyzer"
	"codeguru/internal/analyzer/languages"
	"codeguru/internal/cache"
	"codeguru/internal/generate"
	"codeguru/internal/llm"
	"codeguru/internal/store"
)

// Registry returns the language registry restricted to c.Languages.
func (c *Config) Registry() (*analyzer.Registry, error) {
	r := languages.NewRegistry()
	if len(c.Languages) == 0 {
		return r, nil
	}
	if err := r.Retain(c.Languages); err != nil {
		return nil, &ConfigError{Field: "languages", Reason: err.Error()}
	}
	return r, nil
}

// models converts the per-depth model table.
func (p ProviderConfig) models() llm.Models {
	m := llm.Models{Default: p.Model, ByDepth: make(map[llm.Depth]string, len(p.Models))}
	for depth, name := range p.Models {
		m.ByDepth[llm.Depth(depth)] = name
	}
	return m
}

// BuildProviders constructs every provider named in the route. A provider
// whose credential variable is unset is left out and reported in skipped;
// the client then records it as not configured.
func (c *Config) BuildProviders(ctx context.Context) (providers []llm.Provider, skipped []string, err error) {
	for _, name := range c.Order {
		pc := c.Providers[name]
		key := pc.APIKey()
		if pc.APIKeyEnv != "" && key == "" {
			skipped = append(skipped, name)
			continue
		}
		switch pc.Kind {
		case KindOllama:
			providers = append(providers, llm.NewOllama(name, pc.BaseURL, pc.models()))
		case KindGroq:
			base := pc.BaseURL
			if base == "" {
				base = llm.DefaultGroqURL
			}
			providers = append(providers, llm.NewOpenAICompatible(name, base, key, pc.models()))
		case KindOpenAI:
			base := pc.BaseURL
			if base == "" {
				base = "https://api.openai.com/v1"
			}
			providers = append(providers, llm.NewOpenAICompatible(name, base, key, pc.models()))
		case KindGemini:
			g, err := llm.NewGemini(ctx, name, key, pc.BaseURL, pc.models())
			if err != nil {
				return nil, nil, fmt.Errorf("provider %s: %w", name, err)
			}
			providers = append(providers, g)
		default:
			return nil, nil, &ConfigError{Field: "providers." + name + ".kind", Reason: fmt.Sprintf("unknown kind %q", pc.Kind)}
		}
	}
	return providers, skipped, nil
}

// ClientConfig converts the health and generation settings.
func (c *Config) ClientConfig() generate.Config {
	timeouts := make(map[string]time.Duration)
	for name, pc := range c.Providers {
		if pc.Timeout > 0 {
			timeouts[name] = pc.Timeout
		}
	}
	return generate.Config{
		FailureThreshold: c.Health.FailureThreshold,
		Cooldown:         c.Health.Cooldown,
		AttemptTimeout:   c.Health.AttemptTimeout,
		Timeouts:         timeouts,
		MaxRetryWait:     c.Health.MaxRetryWait,
		CacheTTL:         c.Cache.TTL,
		Temperature:      c.Generation.Temperature,
		MaxTokens:        c.Generation.MaxTokens,
	}
}

// OpenCache builds the response cache. The memory tier is always present;
// the sqlite and bolt backends add a persistent tier behind it. The returned
// close function releases the persistent tier.
func (c *Config) OpenCache(logger *log.Logger) (cache.Store, func() error, error) {
	noop := func() error { return nil }
	if !c.Cache.Enabled {
		return cache.Nop{}, noop, nil
	}
	front := cache.NewMemory(c.Cache.Capacity, c.Cache.TTL)
	if c.Cache.Backend == BackendMemory {
		return front, noop, nil
	}

	path := c.Cache.Path
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		path = filepath.Join(dir, "codeguru", "cache-"+c.Cache.Backend+".db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create cache directory: %w", err)
	}

	switch c.Cache.Backend {
	case BackendSQLite:
		s, err := store.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return cache.NewTiered(front, s.Explanations(c.Cache.MaxEntries), BackendSQLite, logger), s.Close, nil
	case BackendBolt:
		b, err := cache.OpenBolt(path, c.Cache.MaxEntries)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt cache: %w", err)
		}
		return cache.NewTiered(front, b, BackendBolt, logger), b.Close, nil
	}
	return nil, nil, &ConfigError{Field: "cache.backend", Reason: fmt.Sprintf("unknown backend %q", c.Cache.Backend)}
}
