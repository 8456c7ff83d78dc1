package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucketExplanations = []byte("explanations")

// Bolt is a persistent cache tier in a single bbolt file. When it holds more
// than maxEntries, the oldest entries are evicted.
type Bolt struct {
	db         *bbolt.DB
	maxEntries int
	now        func() time.Time
}

// OpenBolt opens or creates the cache file at path.
func OpenBolt(path string, maxEntries int) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketExplanations); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketExplanations, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db, maxEntries: maxEntries, now: time.Now}, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Get(_ context.Context, key string) (Entry, bool, error) {
	var raw []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketExplanations).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("read bolt cache: %w", err)
	}
	if raw == nil {
		return Entry{}, false, nil
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, &CacheCorruptionError{Backend: "bolt", Key: key, Err: err}
	}
	if e.Expired(b.now()) {
		_ = b.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketExplanations).Delete([]byte(key))
		})
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (b *Bolt) Set(_ context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketExplanations)
		if err := bkt.Put([]byte(e.Key), data); err != nil {
			return err
		}
		if b.maxEntries <= 0 {
			return nil
		}
		return evictOldest(bkt, b.maxEntries, e.Key)
	})
}

// evictOldest deletes entries with the oldest CreatedAt until at most limit
// remain, never keep. Bucket stats lag behind uncommitted writes, so the
// entries are counted by scanning.
func evictOldest(bkt *bbolt.Bucket, limit int, keep string) error {
	type aged struct {
		key []byte
		at  time.Time
	}
	var all []aged
	err := bkt.ForEach(func(k, v []byte) error {
		if string(k) == keep {
			return nil
		}
		var e Entry
		if json.Unmarshal(v, &e) != nil {
			// Unreadable entries go first.
			all = append(all, aged{key: append([]byte(nil), k...)})
			return nil
		}
		all = append(all, aged{key: append([]byte(nil), k...), at: e.CreatedAt})
		return nil
	})
	if err != nil {
		return err
	}
	// keep itself takes one of the slots.
	for len(all) > 0 && len(all)+1 > limit {
		oldest := 0
		for i := range all {
			if all[i].at.Before(all[oldest].at) {
				oldest = i
			}
		}
		if err := bkt.Delete(all[oldest].key); err != nil {
			return err
		}
		all = append(all[:oldest], all[oldest+1:]...)
	}
	return nil
}
