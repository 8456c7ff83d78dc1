package index

import (
	"context"
	"fmt"
	"strings"

	"codeguru/internal/analyzer"
	"codeguru/internal/store"
	"codeguru/internal/walker"
)

// languagesKey records which languages the stored entities were extracted
// with. A change forces a full re-analysis.
const languagesKey = "analyzer_languages"

// Config holds the indexer configuration.
type Config struct {
	DBPath      string
	Workers     int
	MaxFileSize int64
	Include     []string
	Exclude     []string
}

// Indexer analyzes whole directory trees and keeps their entities in SQLite.
type Indexer struct {
	store    *store.SQLiteStore
	analyzer *analyzer.Analyzer
	config   Config
}

// New creates a new Indexer backed by the database at cfg.DBPath.
func New(cfg Config, a *analyzer.Analyzer) (*Indexer, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Indexer{store: s, analyzer: a, config: cfg}, nil
}

// Index analyzes the tree at root. Unchanged files are skipped by content
// hash and files that disappeared are removed from the store.
func (idx *Indexer) Index(ctx context.Context, root string, onProgress ProgressFunc) (*Stats, error) {
	langs := strings.Join(idx.analyzer.Registry().Languages(), ",")
	last, err := idx.store.GetMeta(languagesKey)
	if err != nil {
		return nil, fmt.Errorf("get meta: %w", err)
	}
	if last != "" && last != langs {
		if err := idx.store.DeleteAll(); err != nil {
			return nil, fmt.Errorf("delete all: %w", err)
		}
	}

	res, err := runPipeline(ctx, root, idx.store, idx.analyzer, walker.Options{
		MaxFileSize: idx.config.MaxFileSize,
		Include:     idx.config.Include,
		Exclude:     idx.config.Exclude,
	}, idx.config.Workers, onProgress)
	if res == nil {
		return nil, err
	}
	if err != nil {
		return &res.stats, err
	}

	removed, err := idx.store.RemoveMissing(res.seen)
	if err != nil {
		return &res.stats, fmt.Errorf("remove missing: %w", err)
	}
	res.stats.FilesRemoved = removed

	if err := idx.store.SetMeta(languagesKey, langs); err != nil {
		return &res.stats, fmt.Errorf("set meta: %w", err)
	}
	return &res.stats, nil
}

// Store exposes the underlying store for queries.
func (idx *Indexer) Store() *store.SQLiteStore {
	return idx.store
}

// Close releases resources.
func (idx *Indexer) Close() error {
	return idx.store.Close()
}
