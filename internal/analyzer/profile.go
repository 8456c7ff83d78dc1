package analyzer

import (
	"errors"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// DeclRule maps one declaration node kind to an entity kind.
type DeclRule struct {
	Kind EntityKind
	// NameField is the grammar field holding the declared name. Empty means
	// "name"; C-family declarators are followed when the field is absent.
	NameField string
	// RequireField, when set, must be present on the node for it to count
	// (e.g. "body" so that `struct foo x;` is not a class).
	RequireField string
}

// Binding describes a parent node that binds a name to a value, used to name
// anonymous functions: `x = lambda: 0`, `const f = () => {}`.
type Binding struct {
	NameField  string
	ValueField string
}

// LanguageProfile is the static rule table for one language. Profiles are
// plain data and are never mutated after registration.
type LanguageProfile struct {
	Name       string
	Extensions []string
	Aliases    []string
	Grammar    func() *sitter.Language

	Declarations map[string]DeclRule
	// Imports maps import node kinds to the field holding the imported name.
	// An empty field uses the statement text without its keyword.
	Imports map[string]string
	// Branches are node kinds that add one to complexity.
	Branches []string
	// CaseLabels are branch kinds that count only when they carry a value,
	// so a `default:` label adds nothing (Java switch_label, C case_statement).
	CaseLabels []string
	// ShortCircuit lists operator-qualified branch kinds, e.g.
	// binary_expression with && or ||.
	ShortCircuit map[string][]string
	Bindings     map[string]Binding
	// PassThrough node kinds sit between a binding and its value
	// (Go expression_list, parenthesized expressions).
	PassThrough []string
	// Wrappers are parent kinds whose span replaces the declaration's own
	// start (Python decorated_definition).
	Wrappers []string
	// Annotations are preceding sibling kinds absorbed into the span
	// (Rust attribute_item, TypeScript decorator).
	Annotations []string
	// DocComments are comment kinds that form a declaration's documentation
	// when they sit directly above it.
	DocComments []string
	// Docstrings marks languages documented by a string literal opening the
	// body (Python).
	Docstrings bool
}

// Grammar is a loaded profile: the tree-sitter language, rule sets resolved
// for fast lookup, and a pool of parsers. It is read-only and safe to share.
type Grammar struct {
	Profile  *LanguageProfile
	Language *sitter.Language

	branches    map[string]bool
	caseLabels  map[string]bool
	operators   map[string]map[string]bool
	passThrough map[string]bool
	wrappers    map[string]bool
	annotations map[string]bool
	docComments map[string]bool
	parsers     sync.Pool
}

func loadGrammar(p *LanguageProfile) (*Grammar, error) {
	if p.Grammar == nil {
		return nil, errors.New("no grammar constructor registered")
	}
	lang := p.Grammar()
	if lang == nil {
		return nil, errors.New("grammar constructor returned nil")
	}
	matched := 0
	for kind := range p.Declarations {
		if knownKind(lang, kind) {
			matched++
		}
	}
	if matched == 0 {
		return nil, fmt.Errorf("none of %d declaration kinds exist in the grammar", len(p.Declarations))
	}

	g := &Grammar{
		Profile:     p,
		Language:    lang,
		branches:    toSet(p.Branches),
		caseLabels:  toSet(p.CaseLabels),
		operators:   make(map[string]map[string]bool, len(p.ShortCircuit)),
		passThrough: toSet(p.PassThrough),
		wrappers:    toSet(p.Wrappers),
		annotations: toSet(p.Annotations),
		docComments: toSet(p.DocComments),
	}
	for kind, ops := range p.ShortCircuit {
		g.operators[kind] = toSet(ops)
	}
	g.parsers.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(lang)
		return parser
	}
	return g, nil
}

// knownKind reports whether the grammar defines a named node kind. Query
// compilation rejects unknown node types, so a one-pattern query is a cheap
// probe.
func knownKind(lang *sitter.Language, kind string) bool {
	q, err := sitter.NewQuery([]byte("("+kind+") @node"), lang)
	if err != nil {
		return false
	}
	q.Close()
	return true
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// isBranch reports whether the node adds to complexity.
func (g *Grammar) isBranch(n *sitter.Node) bool {
	kind := n.Type()
	if g.branches[kind] {
		return true
	}
	if g.caseLabels[kind] {
		return n.ChildCount() > 0 && n.Child(0).Type() != "default"
	}
	ops, ok := g.operators[kind]
	if !ok {
		return false
	}
	op := n.ChildByFieldName("operator")
	return op != nil && ops[op.Type()]
}

func (g *Grammar) acquire() *sitter.Parser {
	return g.parsers.Get().(*sitter.Parser)
}

func (g *Grammar) release(p *sitter.Parser) {
	g.parsers.Put(p)
}
