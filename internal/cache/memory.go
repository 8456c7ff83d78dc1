package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is a bounded in-process LRU cache with a TTL. The LRU does its own
// locking.
type Memory struct {
	lru *expirable.LRU[string, Entry]
	ttl time.Duration
}

// NewMemory creates a memory store holding at most capacity entries.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 1
	}
	return &Memory{lru: expirable.NewLRU[string, Entry](capacity, nil, ttl), ttl: ttl}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok || e.Expired(time.Now()) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Set(_ context.Context, e Entry) error {
	if e.TTL == 0 {
		e.TTL = m.ttl
	}
	m.lru.Add(e.Key, e)
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}
