// Package cache stores generated explanations keyed by request hash.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Entry is one cached response.
type Entry struct {
	Key       string        `json:"key"`
	Response  string        `json:"response"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its TTL at now. A zero TTL
// never expires.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.CreatedAt.Add(e.TTL))
}

// Store is a response cache. Get reports a miss with ok == false; an error
// means the store itself is unusable.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, e Entry) error
}

// CacheCorruptionError reports a persistent tier that returned unreadable
// data. The tier is dropped; callers continue without it.
type CacheCorruptionError struct {
	Backend string
	Key     string
	Err     error
}

func (e *CacheCorruptionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s corrupted: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("cache %s corrupted at %s: %v", e.Backend, e.Key, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// Nop is a Store that never hits.
type Nop struct{}

func (Nop) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }

func (Nop) Set(context.Context, Entry) error { return nil }
