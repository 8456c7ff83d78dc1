package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// IgnoreFile holds project-specific ignore patterns in .gitignore syntax.
const IgnoreFile = ".codeguruignore"

// DefaultMaxFileSize is the largest file emitted when Options leaves it unset.
const DefaultMaxFileSize = 500 * 1024

// defaultIgnores are always applied.
var defaultIgnores = []string{
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	"vendor/",
	"__pycache__/",
	".venv/",
	"venv/",
	".idea/",
	".vscode/",
	".codeguru/",
	"dist/",
	"build/",
}

// Options selects which files Walk emits.
type Options struct {
	// Extensions without the dot; empty means every file.
	Extensions  map[string]bool
	MaxFileSize int64
	// Include and Exclude are doublestar globs against the slash-separated
	// path relative to the root. An empty Include matches everything.
	Include []string
	Exclude []string
}

// Walk traverses the directory tree rooted at root and sends discovered
// source files on the returned channel. Directories and files matched by
// .gitignore, .codeguruignore or the built-in ignores are skipped.
func Walk(root string, opts Options) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		ignores := loadIgnores(absRoot)

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip errors, keep walking
			}
			if path == absRoot {
				return nil
			}
			rel, err := filepath.Rel(absRoot, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if ignored(ignores, rel+"/") || matchAny(opts.Exclude, rel) {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip symlinks.
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if ignored(ignores, rel) || matchAny(opts.Exclude, rel) {
				return nil
			}
			if len(opts.Include) > 0 && !matchAny(opts.Include, rel) {
				return nil
			}

			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if len(opts.Extensions) > 0 && !opts.Extensions[ext] {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			// Skip large or empty files.
			if info.Size() > opts.MaxFileSize || info.Size() == 0 {
				return nil
			}

			files <- FileInfo{Path: path, RelPath: rel, Size: info.Size()}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// Collect drains Walk into a slice.
func Collect(root string, opts Options) ([]FileInfo, error) {
	ch, errCh := Walk(root, opts)
	var out []FileInfo
	for fi := range ch {
		out = append(out, fi)
	}
	return out, <-errCh
}

// loadIgnores compiles the built-in patterns plus .gitignore and
// .codeguruignore from the root, when present.
func loadIgnores(root string) []*ignore.GitIgnore {
	out := []*ignore.GitIgnore{ignore.CompileIgnoreLines(defaultIgnores...)}
	for _, name := range []string{".gitignore", IgnoreFile} {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if gi, err := ignore.CompileIgnoreFile(p); err == nil {
			out = append(out, gi)
		}
	}
	return out
}

func ignored(ignores []*ignore.GitIgnore, rel string) bool {
	for _, gi := range ignores {
		if gi.MatchesPath(rel) {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
