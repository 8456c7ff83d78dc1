package cache

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
)

// Tiered serves reads from a memory front and falls back to a persistent
// back tier. A back tier that fails is dropped for the rest of the process.
type Tiered struct {
	front   *Memory
	back    Store
	name    string
	dropped atomic.Bool
	logger  *log.Logger
}

// NewTiered layers front over back. back may be nil.
func NewTiered(front *Memory, back Store, name string, logger *log.Logger) *Tiered {
	if logger == nil {
		logger = log.Default()
	}
	return &Tiered{front: front, back: back, name: name, logger: logger}
}

func (t *Tiered) backTier() Store {
	if t.back == nil || t.dropped.Load() {
		return nil
	}
	return t.back
}

// Get checks the memory tier, then the persistent tier. A persistent hit is
// promoted to memory. Persistent failures are returned as
// *CacheCorruptionError after the tier has been dropped; the result is still
// a plain miss. A done ctx returns its error and keeps the tier.
func (t *Tiered) Get(ctx context.Context, key string) (Entry, bool, error) {
	if e, ok, _ := t.front.Get(ctx, key); ok {
		return e, true, nil
	}
	back := t.backTier()
	if back == nil {
		return Entry{}, false, nil
	}
	e, ok, err := back.Get(ctx, key)
	if err != nil {
		return Entry{}, false, t.drop(ctx, key, err)
	}
	if ok {
		_ = t.front.Set(ctx, e)
	}
	return e, ok, nil
}

// Set writes both tiers.
func (t *Tiered) Set(ctx context.Context, e Entry) error {
	_ = t.front.Set(ctx, e)
	back := t.backTier()
	if back == nil {
		return nil
	}
	if err := back.Set(ctx, e); err != nil {
		return t.drop(ctx, e.Key, err)
	}
	return nil
}

// drop disables the back tier. A failure caused by the caller's ctx says
// nothing about the tier and leaves it in place.
func (t *Tiered) drop(ctx context.Context, key string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var corrupt *CacheCorruptionError
	if !errors.As(err, &corrupt) {
		corrupt = &CacheCorruptionError{Backend: t.name, Key: key, Err: err}
	}
	if t.dropped.CompareAndSwap(false, true) {
		t.logger.Printf("cache: dropping %s tier: %v", t.name, err)
	}
	return corrupt
}

// Dropped reports whether the persistent tier has been disabled.
func (t *Tiered) Dropped() bool {
	return t.dropped.Load()
}
