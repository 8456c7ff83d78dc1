// Package generate routes prompts to text-generation providers with caching,
// rate-limit handling and failover.
package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"codeguru/internal/cache"
	"codeguru/internal/llm"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 60 * time.Second
	DefaultAttemptTimeout   = 60 * time.Second
	DefaultMaxRetryWait     = 30 * time.Second
	DefaultCacheTTL         = time.Hour
)

// Request is one generation request.
type Request struct {
	Prompt   string
	System   string
	Depth    llm.Depth
	Language string
}

// Key is the provider-independent cache key of the request.
func (r Request) Key() string {
	h := sha256.New()
	for _, part := range []string{r.Prompt, string(r.Depth), r.Language} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Config holds the client's tunables. Zero values take the defaults.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	AttemptTimeout   time.Duration
	// Timeouts overrides AttemptTimeout per provider name.
	Timeouts     map[string]time.Duration
	MaxRetryWait time.Duration
	CacheTTL     time.Duration
	Temperature  float64
	MaxTokens    int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.MaxRetryWait <= 0 {
		c.MaxRetryWait = DefaultMaxRetryWait
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}

// Client is the explicit context for generation: providers, cache and
// health table. It is safe for concurrent use; independent clients share
// nothing.
type Client struct {
	providers map[string]llm.Provider
	cache     cache.Store
	health    *HealthTable
	cfg       Config
	logger    *log.Logger
	debug     *log.Logger
	group     singleflight.Group
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for warnings.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDebug sets the logger for per-attempt detail.
func WithDebug(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.debug = l
		}
	}
}

// WithClock replaces time.Now and the rate-limit sleep, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New creates a client over the given providers. store may be nil to
// disable caching.
func New(providers []llm.Provider, store cache.Store, cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	if store == nil {
		store = cache.Nop{}
	}
	c := &Client{
		providers: make(map[string]llm.Provider, len(providers)),
		cache:     store,
		health:    NewHealthTable(cfg.FailureThreshold, cfg.Cooldown),
		cfg:       cfg,
		logger:    log.Default(),
		debug:     log.New(io.Discard, "", 0),
		now:       time.Now,
		sleep:     sleepCtx,
	}
	for _, p := range providers {
		c.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health returns the provider's current health.
func (c *Client) Health(provider string) Health {
	return c.health.Snapshot(provider, c.now())
}

// EffectiveRoute filters order down to the providers that would be tried
// now.
func (c *Client) EffectiveRoute(order []string) []string {
	now := c.now()
	var out []string
	for _, name := range order {
		if _, ok := c.providers[name]; ok && c.health.Snapshot(name, now).Available {
			out = append(out, name)
		}
	}
	return out
}

// Generate returns the cached response for req or asks the providers in
// order. It fails with *AllProvidersFailedError only after every provider
// has been tried or skipped. Identical concurrent requests share one
// provider round; the round outlives any single caller, and each caller
// stops waiting when its own ctx is done.
func (c *Client) Generate(ctx context.Context, req Request, order []string) (string, error) {
	key := req.Key()
	if text, ok := c.lookup(ctx, key); ok {
		return text, nil
	}
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished just before this one may have filled the cache.
		if text, ok := c.lookup(flightCtx, key); ok {
			return text, nil
		}
		return c.route(flightCtx, req, key, order)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("generate: %w", ctx.Err())
	}
}

// Future is the pending result of GenerateAsync.
type Future struct {
	done chan struct{}
	text string
	err  error
}

// Done is closed when the result is ready.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is ready or ctx is done.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.text, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// GenerateAsync runs Generate in its own goroutine.
func (c *Client) GenerateAsync(ctx context.Context, req Request, order []string) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.text, f.err = c.Generate(ctx, req, order)
	}()
	return f
}

func (c *Client) lookup(ctx context.Context, key string) (string, bool) {
	e, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Printf("generate: cache lookup failed, continuing without it: %v", err)
		return "", false
	}
	if ok {
		c.debug.Printf("generate: cache hit %s", key[:12])
	}
	return e.Response, ok
}

func (c *Client) route(ctx context.Context, req Request, key string, order []string) (string, error) {
	call := llm.Call{
		Prompt:      req.Prompt,
		System:      req.System,
		Depth:       req.Depth,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	var attempts []Attempt
	for _, name := range order {
		p, ok := c.providers[name]
		if !ok {
			attempts = append(attempts, Attempt{Provider: name, Outcome: OutcomeNotConfigured})
			continue
		}
		allowed, probe := c.health.acquire(name, c.now())
		if !allowed {
			h := c.health.Snapshot(name, c.now())
			c.debug.Printf("generate: skipping %s until %s", name, h.CooldownUntil.Format(time.TimeOnly))
			attempts = append(attempts, Attempt{Provider: name, Outcome: OutcomeCooldown, CooldownUntil: h.CooldownUntil})
			continue
		}
		if probe {
			c.debug.Printf("generate: probing %s after cooldown", name)
		}

		text, pErr := c.attempt(ctx, p, call)
		if pErr == nil {
			c.health.recordSuccess(name)
			c.store(ctx, key, text)
			return text, nil
		}
		c.health.recordFailure(name, c.now())
		c.logger.Printf("generate: %v", pErr)
		attempts = append(attempts, Attempt{Provider: name, Outcome: OutcomeFailed, Kind: pErr.Kind, Err: pErr})
	}
	return "", &AllProvidersFailedError{Key: key, Attempts: attempts}
}

// attempt makes one call, plus one retry after a rate-limit wait. Both
// together count as a single failure.
func (c *Client) attempt(ctx context.Context, p llm.Provider, call llm.Call) (string, *llm.ProviderError) {
	text, pErr := c.send(ctx, p, call)
	if pErr == nil || pErr.Kind != llm.RateLimited || pErr.RetryAfter <= 0 {
		return text, pErr
	}
	wait := min(pErr.RetryAfter, c.cfg.MaxRetryWait)
	c.debug.Printf("generate: %s rate limited, waiting %s", p.Name(), wait)
	if err := c.sleep(ctx, wait); err != nil {
		return "", llm.AsProviderError(p.Name(), err)
	}
	return c.send(ctx, p, call)
}

func (c *Client) send(ctx context.Context, p llm.Provider, call llm.Call) (string, *llm.ProviderError) {
	timeout := c.cfg.AttemptTimeout
	if t, ok := c.cfg.Timeouts[p.Name()]; ok && t > 0 {
		timeout = t
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := p.Complete(attemptCtx, call)
	if err == nil {
		return text, nil
	}
	pErr := llm.AsProviderError(p.Name(), err)
	if pErr.Provider == "" {
		pErr.Provider = p.Name()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		pErr = &llm.ProviderError{Provider: p.Name(), Kind: llm.Timeout, Err: fmt.Errorf("no response within %s: %w", timeout, err)}
	}
	return "", pErr
}

func (c *Client) store(ctx context.Context, key, text string) {
	err := c.cache.Set(ctx, cache.Entry{Key: key, Response: text, CreatedAt: c.now(), TTL: c.cfg.CacheTTL})
	if err != nil {
		c.logger.Printf("generate: cache store failed: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
