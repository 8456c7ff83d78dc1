package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// DefaultMaxFileSize is the largest file AnalyzeFile will read.
const DefaultMaxFileSize = 500 * 1024

// maxDiagnostics bounds the diagnostics kept per unit. Badly broken files
// otherwise produce one per token.
const maxDiagnostics = 50

// SourceUnit is one parsed source text. It owns the tree-sitter tree and
// must be closed once entities have been extracted.
type SourceUnit struct {
	Path        string
	Language    string
	Text        []byte
	Diagnostics []ParseDiagnostic

	tree    *sitter.Tree
	grammar *Grammar

	branchOnce sync.Once
	branches   []int
}

// Root returns the root node of the parse tree.
func (u *SourceUnit) Root() *sitter.Node {
	return u.tree.RootNode()
}

// Close releases the parse tree.
func (u *SourceUnit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

// branchOffsets returns the sorted start offsets of every branch node.
func (u *SourceUnit) branchOffsets() []int {
	u.branchOnce.Do(func() {
		walk(u.Root(), func(n *sitter.Node) bool {
			if n.IsNamed() && u.grammar.isBranch(n) {
				u.branches = append(u.branches, int(n.StartByte()))
			}
			return true
		})
		sort.Ints(u.branches)
	})
	return u.branches
}

// Analysis is the serializable result of analyzing one file.
type Analysis struct {
	Path        string             `json:"path"`
	Language    string             `json:"language"`
	Entities    []StructuralEntity `json:"entities"`
	Diagnostics []ParseDiagnostic  `json:"diagnostics,omitempty"`
}

// Analyzer parses source text into structural entities. It is safe for
// concurrent use.
type Analyzer struct {
	registry    *Registry
	maxFileSize int64
	logger      *log.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxFileSize sets the size limit enforced by AnalyzeFile.
func WithMaxFileSize(n int64) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxFileSize = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an analyzer backed by the given registry.
func New(r *Registry, opts ...Option) *Analyzer {
	a := &Analyzer{
		registry:    r,
		maxFileSize: DefaultMaxFileSize,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the language registry.
func (a *Analyzer) Registry() *Registry {
	return a.registry
}

// Warm loads every registered grammar. A load failure is fatal for the
// process; Warm surfaces all of them at once.
func (a *Analyzer) Warm() error {
	var errs []error
	for _, name := range a.registry.Languages() {
		if _, err := a.registry.Grammar(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Parse parses text in the given language. Syntax errors do not fail the
// call; they are recorded as diagnostics on the returned unit.
func (a *Analyzer) Parse(ctx context.Context, text []byte, language string) (*SourceUnit, error) {
	g, err := a.registry.Grammar(language)
	if err != nil {
		return nil, err
	}

	parser := g.acquire()
	tree, err := parser.ParseCtx(ctx, nil, text)
	if err != nil {
		// A cancelled parser keeps partial state; let it go.
		return nil, fmt.Errorf("parse %s: %w", g.Profile.Name, err)
	}
	g.release(parser)

	u := &SourceUnit{
		Language: g.Profile.Name,
		Text:     text,
		tree:     tree,
		grammar:  g,
	}
	u.Diagnostics = collectDiagnostics(tree.RootNode(), text)
	return u, nil
}

// Analyze parses text and extracts its entities.
func (a *Analyzer) Analyze(ctx context.Context, path string, text []byte, language string) (*Analysis, error) {
	u, err := a.Parse(ctx, text, language)
	if err != nil {
		return nil, err
	}
	defer u.Close()
	u.Path = path

	if len(u.Diagnostics) > 0 {
		a.logger.Printf("analyzer: %s: %d syntax diagnostics, first %s", displayPath(path), len(u.Diagnostics), u.Diagnostics[0])
	}
	return &Analysis{
		Path:        path,
		Language:    u.Language,
		Entities:    ExtractEntities(u),
		Diagnostics: u.Diagnostics,
	}, nil
}

// ReadSource reads a file for analysis, enforcing the size limit and
// rejecting non-UTF-8 content.
func (a *Analyzer) ReadSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > a.maxFileSize {
		return nil, &FileTooLargeError{Path: path, Size: info.Size(), MaxSize: a.maxFileSize}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%s is not valid UTF-8 text", path)
	}
	return src, nil
}

// AnalyzeFile reads, detects and analyzes one file.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Analysis, error) {
	lang := a.registry.DetectLanguage(path)
	if lang == "" {
		return nil, &UnsupportedLanguageError{Language: extOf(path)}
	}
	src, err := a.ReadSource(path)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, path, src, lang)
}

// collectDiagnostics reports ERROR and MISSING nodes. Subtrees without
// errors are skipped, so clean files cost one check on the root.
func collectDiagnostics(root *sitter.Node, text []byte) []ParseDiagnostic {
	if root == nil || !root.HasError() {
		return nil
	}
	var out []ParseDiagnostic
	walk(root, func(n *sitter.Node) bool {
		if len(out) >= maxDiagnostics {
			return false
		}
		if n.IsMissing() {
			out = append(out, diagnosticAt(n, "missing "+n.Type()))
			return false
		}
		if n.Type() == "ERROR" {
			out = append(out, diagnosticAt(n, "unexpected "+excerpt(n.Content(text))))
			return false
		}
		return n.HasError()
	})
	return out
}

func diagnosticAt(n *sitter.Node, msg string) ParseDiagnostic {
	p := n.StartPoint()
	return ParseDiagnostic{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Message: msg}
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "input"
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return fmt.Sprintf("%q", s)
}

// walk visits nodes in document order. Returning false skips the subtree.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		walk(n.Child(i), visit)
	}
}

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 && !strings.ContainsAny(path[i:], `/\`) {
		return path[i:]
	}
	return ""
}

func displayPath(path string) string {
	if path == "" {
		return "<input>"
	}
	return path
}
