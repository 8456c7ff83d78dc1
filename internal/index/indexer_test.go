package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeguru/internal/analyzer"
	"codeguru/internal/analyzer/languages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pySrc = `import os

def walk(root):
    for name in os.listdir(root):
        if name.startswith("."):
            continue
        yield name
`

const goSrc = `package main

func main() {
	println("hi")
}
`

func newIndexer(t *testing.T) (*Indexer, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := New(Config{DBPath: filepath.Join(dir, "index.db"), Workers: 2},
		analyzer.New(languages.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	root := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cmd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "walk.py"), []byte(pySrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cmd", "main.go"), []byte(goSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# hi"), 0o644))
	return idx, root
}

func TestIndexSkipsUnchangedFiles(t *testing.T) {
	idx, root := newIndexer(t)
	ctx := context.Background()

	var progress int
	stats, err := idx.Index(ctx, root, func(_ string, done, _ int) { progress = done })
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesTotal)
	assert.Equal(t, 2, stats.FilesAnalyzed)
	assert.Equal(t, 0, stats.FilesSkipped)
	assert.Equal(t, 2, progress)

	entities, err := idx.Store().FileEntities("walk.py")
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "walk", entities[2].Name)
	assert.Equal(t, 3, entities[2].Complexity)

	stats, err = idx.Index(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesAnalyzed)
	assert.Equal(t, 2, stats.FilesSkipped)
}

func TestIndexContainsFileFailures(t *testing.T) {
	idx, root := newIndexer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.py"), []byte{0xff, 0xfe, 'x'}, 0o644))

	stats, err := idx.Index(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesAnalyzed)
	assert.Equal(t, 1, stats.FilesFailed)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, "bad.py", stats.Failures[0].Path)
}

func TestIndexRemovesMissingFiles(t *testing.T) {
	idx, root := newIndexer(t)
	ctx := context.Background()
	_, err := idx.Index(ctx, root, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "walk.py")))
	stats, err := idx.Index(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesRemoved)

	files, err := idx.Store().ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "cmd/main.go", files[0].Path)
}

func TestReport(t *testing.T) {
	idx, root := newIndexer(t)
	_, err := idx.Index(context.Background(), root, nil)
	require.NoError(t, err)

	md, err := Report(idx.Store(), 1)
	require.NoError(t, err)
	assert.Contains(t, md, "| walk.py | python | 3 | 3 |")
	assert.Contains(t, md, "1. `walk` (function) in walk.py:3, complexity 3")
}
