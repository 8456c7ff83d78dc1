package generate

import (
	"sync"
	"time"
)

// Health is a snapshot of one provider's state.
type Health struct {
	Available           bool
	CooldownUntil       time.Time
	ConsecutiveFailures int
}

type providerHealth struct {
	mu                  sync.Mutex
	consecutiveFailures int
	cooldownUntil       time.Time
	probing             bool
}

// HealthTable tracks consecutive failures per provider. A provider that
// reaches the threshold is skipped until its cooldown elapses; after that a
// single probe is let through. Each provider has its own lock.
type HealthTable struct {
	mu        sync.RWMutex
	providers map[string]*providerHealth
	threshold int
	cooldown  time.Duration
}

// NewHealthTable creates a table with the given failure threshold and
// cooldown window.
func NewHealthTable(threshold int, cooldown time.Duration) *HealthTable {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &HealthTable{
		providers: make(map[string]*providerHealth),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

func (h *HealthTable) get(name string) *providerHealth {
	h.mu.RLock()
	p, ok := h.providers[name]
	h.mu.RUnlock()
	if ok {
		return p
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok = h.providers[name]; !ok {
		p = &providerHealth{}
		h.providers[name] = p
	}
	return p
}

// acquire reports whether the provider may be tried now. probe is true when
// the attempt is the half-open probe after a cooldown.
func (h *HealthTable) acquire(name string, now time.Time) (ok, probe bool) {
	p := h.get(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consecutiveFailures < h.threshold {
		return true, false
	}
	if now.Before(p.cooldownUntil) || p.probing {
		return false, false
	}
	p.probing = true
	return true, true
}

func (h *HealthTable) recordSuccess(name string) {
	p := h.get(name)
	p.mu.Lock()
	p.consecutiveFailures = 0
	p.cooldownUntil = time.Time{}
	p.probing = false
	p.mu.Unlock()
}

// recordFailure counts a failure. At or above the threshold the cooldown is
// (re)armed, which is also how a failed probe closes the circuit again.
func (h *HealthTable) recordFailure(name string, now time.Time) {
	p := h.get(name)
	p.mu.Lock()
	p.consecutiveFailures++
	p.probing = false
	if p.consecutiveFailures >= h.threshold {
		p.cooldownUntil = now.Add(h.cooldown)
	}
	p.mu.Unlock()
}

// Snapshot returns the provider's current state.
func (h *HealthTable) Snapshot(name string, now time.Time) Health {
	p := h.get(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	return Health{
		Available:           p.consecutiveFailures < h.threshold || !now.Before(p.cooldownUntil),
		CooldownUntil:       p.cooldownUntil,
		ConsecutiveFailures: p.consecutiveFailures,
	}
}
