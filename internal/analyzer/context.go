package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

// ContextBundle is a snapshot of one entity prepared for prompt assembly.
type ContextBundle struct {
	Entity         StructuralEntity  `json:"entity"`
	EnclosingClass *StructuralEntity `json:"enclosing_class,omitempty"`
	Snippet        string            `json:"snippet"`
	Language       string            `json:"language"`
	Path           string            `json:"path,omitempty"`
	Imports        []string          `json:"imports,omitempty"`
	// Dependencies are names of other classes and functions in the same file
	// that the snippet refers to.
	Dependencies []string `json:"dependencies,omitempty"`
}

// BuildContext assembles the bundle for the entity with the given ID.
func BuildContext(a *Analysis, text []byte, id int) (*ContextBundle, error) {
	if id < 0 || id >= len(a.Entities) {
		return nil, fmt.Errorf("entity %d out of range (have %d)", id, len(a.Entities))
	}
	e := a.Entities[id]
	if e.Span.EndByte > len(text) {
		return nil, fmt.Errorf("entity %q spans past the end of the text", e.Name)
	}
	b := &ContextBundle{
		Entity:   e,
		Snippet:  string(text[e.Span.StartByte:e.Span.EndByte]),
		Language: a.Language,
		Path:     a.Path,
	}
	for p := e.Parent; p != NoParent; p = a.Entities[p].Parent {
		if a.Entities[p].Kind == KindClass {
			cls := a.Entities[p]
			b.EnclosingClass = &cls
			break
		}
	}

	seen := make(map[string]bool)
	for _, other := range a.Entities {
		switch other.Kind {
		case KindImport:
			b.Imports = append(b.Imports, other.Name)
		case KindClass, KindFunction, KindMethod:
			if other.ID == e.ID || seen[other.Name] || strings.HasPrefix(other.Name, "<") {
				continue
			}
			if e.Span.Contains(other.Span) {
				continue
			}
			if mentions(b.Snippet, other.Name) {
				seen[other.Name] = true
				b.Dependencies = append(b.Dependencies, other.Name)
			}
		}
	}
	return b, nil
}

func mentions(snippet, name string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(snippet)
}

// Find returns the first entity with the given name and one of the given
// kinds (any kind when none are given). "Class.method" selects a method
// inside a named class.
func Find(entities []StructuralEntity, name string, kinds ...EntityKind) (StructuralEntity, bool) {
	for _, e := range entities {
		if e.Name == name && kindIn(e.Kind, kinds) {
			return e, true
		}
	}
	owner := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 && i < len(name)-1 {
		owner, name = name[:i], name[i+1:]
	}
	for _, e := range entities {
		if e.Name != name || !kindIn(e.Kind, kinds) {
			continue
		}
		if owner != "" && (e.Parent == NoParent || entities[e.Parent].Name != owner) {
			continue
		}
		return e, true
	}
	return StructuralEntity{}, false
}

func kindIn(k EntityKind, kinds []EntityKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
