package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codeguru/internal/cache"
)

// Explanations is the persistent explanation cache tier. Entries past their
// TTL are deleted on read; above maxEntries the least recently read rows are
// evicted.
type Explanations struct {
	db         *sql.DB
	maxEntries int
	now        func() time.Time
}

// Explanations returns the cache tier backed by this database.
func (s *SQLiteStore) Explanations(maxEntries int) *Explanations {
	return &Explanations{db: s.db, maxEntries: maxEntries, now: time.Now}
}

func (x *Explanations) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	var (
		response   string
		created    int64
		ttlSeconds int64
	)
	err := x.db.QueryRowContext(ctx,
		"SELECT response, created_at, ttl_seconds FROM explanations WHERE key = ?", key,
	).Scan(&response, &created, &ttlSeconds)
	if err == sql.ErrNoRows {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return cache.Entry{}, false, ctx.Err()
		}
		return cache.Entry{}, false, &cache.CacheCorruptionError{Backend: "sqlite", Key: key, Err: err}
	}

	e := cache.Entry{
		Key:       key,
		Response:  response,
		CreatedAt: time.Unix(created, 0),
		TTL:       time.Duration(ttlSeconds) * time.Second,
	}
	now := x.now()
	if e.Expired(now) {
		if _, err := x.db.ExecContext(ctx, "DELETE FROM explanations WHERE key = ?", key); err != nil {
			return cache.Entry{}, false, fmt.Errorf("delete expired explanation: %w", err)
		}
		return cache.Entry{}, false, nil
	}
	if _, err := x.db.ExecContext(ctx, "UPDATE explanations SET accessed_at = ? WHERE key = ?", now.UnixNano(), key); err != nil {
		return cache.Entry{}, false, fmt.Errorf("touch explanation: %w", err)
	}
	return e, true, nil
}

func (x *Explanations) Set(ctx context.Context, e cache.Entry) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO explanations (key, response, created_at, ttl_seconds, accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			response = excluded.response,
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds,
			accessed_at = excluded.accessed_at`,
		e.Key, e.Response, e.CreatedAt.Unix(), int64(e.TTL/time.Second), x.now().UnixNano())
	if err != nil {
		return fmt.Errorf("store explanation: %w", err)
	}
	if x.maxEntries > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM explanations WHERE key IN (
			SELECT key FROM explanations ORDER BY accessed_at DESC LIMIT -1 OFFSET ?)`, x.maxEntries)
		if err != nil {
			return fmt.Errorf("evict explanations: %w", err)
		}
	}
	return tx.Commit()
}
