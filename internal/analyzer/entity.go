package analyzer

// EntityKind classifies a structural entity.
type EntityKind string

const (
	KindModule   EntityKind = "module"
	KindClass    EntityKind = "class"
	KindFunction EntityKind = "function"
	KindMethod   EntityKind = "method"
	KindImport   EntityKind = "import"
)

// Scored reports whether entities of this kind carry a complexity score.
func (k EntityKind) Scored() bool {
	return k == KindClass || k == KindFunction || k == KindMethod
}

// NoParent is the parent ID of the module entity.
const NoParent = -1

// Span is a half-open byte range [StartByte, EndByte) plus the 1-based,
// inclusive line range it covers.
type Span struct {
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return o.StartByte >= s.StartByte && o.EndByte <= s.EndByte
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.StartByte < o.EndByte && o.StartByte < s.EndByte
}

// StructuralEntity is one named unit of a source file. Entities are kept in a
// flat, document-ordered slice; Parent is the index of the innermost
// enclosing entity in that slice.
type StructuralEntity struct {
	ID         int        `json:"id"`
	Kind       EntityKind `json:"kind"`
	Name       string     `json:"name"`
	Span       Span       `json:"span"`
	Parent     int        `json:"parent"`
	Complexity int        `json:"complexity"`
	// Parameters are the declared parameters as written, one per entry.
	Parameters []string `json:"parameters,omitempty"`
	// Doc is the docstring or leading doc comment with markers stripped.
	Doc string `json:"doc,omitempty"`
}

// Children returns the direct children of the entity with the given ID.
func Children(entities []StructuralEntity, id int) []StructuralEntity {
	var out []StructuralEntity
	for _, e := range entities {
		if e.Parent == id && e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
