package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"codeguru/internal/analyzer"
	"codeguru/internal/store"
	"codeguru/internal/walker"

	"golang.org/x/sync/errgroup"
)

// ProgressFunc is called after each file is stored.
type ProgressFunc func(stage string, done, total int)

// Stats reports indexing results.
type Stats struct {
	FilesTotal    int
	FilesAnalyzed int
	FilesSkipped  int
	FilesFailed   int
	FilesRemoved  int
	Entities      int
	Diagnostics   int
	Failures      []FileError
}

// FileError records a file that could not be analyzed. Failures are
// contained per file and never stop the batch.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

// fileWork is a file that needs to be (re-)analyzed.
type fileWork struct {
	info walker.FileInfo
	hash string
	lang string
	src  []byte
}

// analyzedFile is the result of parsing one file.
type analyzedFile struct {
	work     fileWork
	analysis *analyzer.Analysis
	err      error
}

// pipelineResult carries the counters the stages share.
type pipelineResult struct {
	stats Stats
	seen  map[string]bool
}

func runPipeline(
	ctx context.Context,
	root string,
	s *store.SQLiteStore,
	a *analyzer.Analyzer,
	opts walker.Options,
	numWorkers int,
	onProgress ProgressFunc,
) (*pipelineResult, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if opts.Extensions == nil {
		opts.Extensions = a.Registry().Extensions()
	}

	res := &pipelineResult{seen: make(map[string]bool)}
	var seenMu sync.Mutex
	var filesTotal atomic.Int64

	// Stage 1: Walk (only files with registered grammars)
	fileCh, walkErrCh := walker.Walk(root, opts)

	// Stage 2: Hash + check (N workers)
	workCh := make(chan fileWork, numWorkers)
	doneCh := make(chan analyzedFile, numWorkers)
	var hashWg sync.WaitGroup
	for range numWorkers {
		hashWg.Add(1)
		go func() {
			defer hashWg.Done()
			for fi := range fileCh {
				filesTotal.Add(1)
				seenMu.Lock()
				res.seen[fi.RelPath] = true
				seenMu.Unlock()

				src, err := a.ReadSource(fi.Path)
				if err != nil {
					doneCh <- analyzedFile{work: fileWork{info: fi}, err: err}
					continue
				}
				h := sha256.Sum256(src)
				hash := hex.EncodeToString(h[:])

				existing, err := s.GetFileHash(fi.RelPath)
				if err == nil && existing == hash {
					continue // unchanged
				}

				workCh <- fileWork{
					info: fi,
					hash: hash,
					lang: a.Registry().DetectLanguage(fi.Path),
					src:  src,
				}
			}
		}()
	}
	go func() {
		hashWg.Wait()
		close(workCh)
	}()

	// Stage 3: Parse + extract (N workers)
	g, gctx := errgroup.WithContext(ctx)
	for range numWorkers {
		g.Go(func() error {
			for w := range workCh {
				if err := gctx.Err(); err != nil {
					return err
				}
				an, err := a.Analyze(gctx, w.info.RelPath, w.src, w.lang)
				doneCh <- analyzedFile{work: w, analysis: an, err: err}
			}
			return nil
		})
	}
	var parseErr error
	go func() {
		parseErr = g.Wait()
		// Drain so the hash stage never blocks after cancellation.
		for range workCh {
		}
		close(doneCh)
	}()

	// Stage 4: Store (1 worker, this goroutine)
	stats := &res.stats
	var storeErr error
	for af := range doneCh {
		rel := af.work.info.RelPath
		if af.err != nil {
			stats.FilesFailed++
			stats.Failures = append(stats.Failures, FileError{Path: rel, Err: af.err})
			continue
		}
		if err := storeAnalysis(s, af); err != nil {
			fmt.Fprintf(os.Stderr, "store error %s: %v\n", rel, err)
			storeErr = err
			stats.FilesFailed++
			stats.Failures = append(stats.Failures, FileError{Path: rel, Err: err})
			continue
		}

		stats.FilesAnalyzed++
		stats.Entities += len(af.analysis.Entities)
		stats.Diagnostics += len(af.analysis.Diagnostics)
		if onProgress != nil {
			onProgress("Analyzing files...", stats.FilesAnalyzed+stats.FilesFailed, int(filesTotal.Load()))
		}
	}

	// Check walk errors.
	if err := <-walkErrCh; err != nil {
		return nil, fmt.Errorf("walk error: %w", err)
	}

	stats.FilesTotal = int(filesTotal.Load())
	stats.FilesSkipped = stats.FilesTotal - stats.FilesAnalyzed - stats.FilesFailed

	if parseErr != nil {
		return res, fmt.Errorf("analysis interrupted: %w", parseErr)
	}
	if storeErr != nil {
		return res, fmt.Errorf("storage failed: %w", storeErr)
	}
	return res, nil
}

func storeAnalysis(s *store.SQLiteStore, af analyzedFile) error {
	fileID, err := s.UpsertFile(store.FileRecord{
		Path:        af.work.info.RelPath,
		Hash:        af.work.hash,
		Language:    af.work.lang,
		SizeBytes:   af.work.info.Size,
		Diagnostics: len(af.analysis.Diagnostics),
	})
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	records := make([]store.EntityRecord, len(af.analysis.Entities))
	for i, e := range af.analysis.Entities {
		records[i] = store.EntityRecord{
			Ordinal:    e.ID,
			Parent:     e.Parent,
			Kind:       string(e.Kind),
			Name:       e.Name,
			StartByte:  e.Span.StartByte,
			EndByte:    e.Span.EndByte,
			StartLine:  e.Span.StartLine,
			EndLine:    e.Span.EndLine,
			Complexity: e.Complexity,
		}
	}
	if err := s.InsertEntities(fileID, records); err != nil {
		// Clear the hash so the next run retries this file.
		if _, uerr := s.UpsertFile(store.FileRecord{Path: af.work.info.RelPath, Language: af.work.lang}); uerr != nil {
			return fmt.Errorf("insert entities: %w (reset: %v)", err, uerr)
		}
		return fmt.Errorf("insert entities: %w", err)
	}
	return nil
}
