package analyzer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

var importPrefixes = []string{"import static ", "import ", "use ", "#include "}

// extractor carries the state of one document-order walk.
type extractor struct {
	unit     *SourceUnit
	grammar  *Grammar
	entities []StructuralEntity
	stack    []int
}

// ExtractEntities walks the unit's tree once and returns its entities in
// document order. The first entity is always the module; every other entity
// records the index of its innermost enclosing entity as Parent.
func ExtractEntities(u *SourceUnit) []StructuralEntity {
	x := &extractor{
		unit:     u,
		grammar:  u.grammar,
		entities: []StructuralEntity{moduleEntity(u)},
		stack:    []int{0},
	}
	x.visit(u.Root(), false)
	for i := range x.entities {
		x.entities[i].Complexity = ComputeComplexity(u, x.entities[i])
	}
	return x.entities
}

func moduleEntity(u *SourceUnit) StructuralEntity {
	name := "<module>"
	if u.Path != "" {
		name = filepath.Base(u.Path)
	}
	endLine := 1
	if n := len(u.Text); n > 0 {
		endLine = bytes.Count(u.Text[:n-1], []byte("\n")) + 1
	}
	return StructuralEntity{
		ID:     0,
		Kind:   KindModule,
		Name:   name,
		Span:   Span{StartByte: 0, EndByte: len(u.Text), StartLine: 1, EndLine: endLine},
		Parent: NoParent,
	}
}

// visit handles one node. claimed is set when a wrapper above already
// produced the entity for this declaration node.
func (x *extractor) visit(n *sitter.Node, claimed bool) {
	if n == nil {
		return
	}
	p := x.grammar.Profile
	pushed := false
	var inner *sitter.Node

	if n.IsNamed() && !claimed {
		kind := n.Type()
		if field, ok := p.Imports[kind]; ok {
			x.add(KindImport, importName(n, field, x.unit.Text), n, n)
			return
		}
		if x.grammar.wrappers[kind] {
			if decl, rule := x.wrapped(n); decl != nil {
				x.push(x.declare(decl, rule, n))
				pushed = true
				inner = decl
			}
		} else if rule, ok := x.declRule(n); ok {
			x.push(x.declare(n, rule, n))
			pushed = true
		}
	}

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		x.visit(c, inner != nil && sameNode(c, inner))
	}
	if pushed {
		x.stack = x.stack[:len(x.stack)-1]
	}
}

func (x *extractor) declRule(n *sitter.Node) (DeclRule, bool) {
	rule, ok := x.grammar.Profile.Declarations[n.Type()]
	if !ok {
		return rule, false
	}
	if rule.RequireField != "" && n.ChildByFieldName(rule.RequireField) == nil {
		return rule, false
	}
	return rule, true
}

// wrapped returns the declaration a wrapper node (decorators, templates)
// decorates.
func (x *extractor) wrapped(n *sitter.Node) (*sitter.Node, DeclRule) {
	count := int(n.NamedChildCount())
	for i := count - 1; i >= 0; i-- {
		c := n.NamedChild(i)
		if rule, ok := x.declRule(c); ok {
			return c, rule
		}
	}
	return nil, DeclRule{}
}

// declare adds a declaration entity. spanNode is the node whose start begins
// the span (the wrapper, when there is one).
func (x *extractor) declare(n *sitter.Node, rule DeclRule, spanNode *sitter.Node) int {
	kind := rule.Kind
	if kind == KindFunction && x.entities[x.stack[len(x.stack)-1]].Kind == KindClass {
		kind = KindMethod
	}
	id := x.add(kind, x.declName(n, rule), spanNode, n)
	x.entities[id].Parameters = x.parameters(n)
	x.entities[id].Doc = x.doc(n, spanNode)
	return id
}

func (x *extractor) add(kind EntityKind, name string, startNode, endNode *sitter.Node) int {
	parent := x.stack[len(x.stack)-1]
	span := x.span(startNode, endNode)
	ps := x.entities[parent].Span
	if span.StartByte < ps.StartByte {
		span.StartByte, span.StartLine = ps.StartByte, ps.StartLine
	}
	id := len(x.entities)
	x.entities = append(x.entities, StructuralEntity{
		ID:     id,
		Kind:   kind,
		Name:   name,
		Span:   span,
		Parent: parent,
	})
	return id
}

func (x *extractor) push(id int) {
	x.stack = append(x.stack, id)
}

// span covers startNode through endNode, extended back over annotation
// siblings that immediately precede startNode.
func (x *extractor) span(startNode, endNode *sitter.Node) Span {
	start := x.leading(startNode)
	sp, ep := start.StartPoint(), endNode.EndPoint()
	s := Span{
		StartByte: int(start.StartByte()),
		EndByte:   int(endNode.EndByte()),
		StartLine: int(sp.Row) + 1,
		EndLine:   int(ep.Row) + 1,
	}
	// A node ending on a newline reports the next row at column 0.
	if ep.Column == 0 && s.EndByte > s.StartByte && ep.Row > sp.Row {
		s.EndLine = int(ep.Row)
	}
	return s
}

// leading returns the first of the annotation siblings directly before n, or
// n itself.
func (x *extractor) leading(n *sitter.Node) *sitter.Node {
	start := n
	if len(x.grammar.annotations) == 0 {
		return start
	}
	for s := n.PrevNamedSibling(); s != nil && x.grammar.annotations[s.Type()]; s = s.PrevNamedSibling() {
		start = s
	}
	return start
}

// parameters lists the declaration's parameters as written. C-family
// functions keep theirs on the declarator.
func (x *extractor) parameters(n *sitter.Node) []string {
	list := n.ChildByFieldName("parameters")
	for d := n.ChildByFieldName("declarator"); list == nil && d != nil; d = d.ChildByFieldName("declarator") {
		list = d.ChildByFieldName("parameters")
	}
	if list == nil {
		// `x => x` has a single bare parameter.
		if single := n.ChildByFieldName("parameter"); single != nil {
			return []string{collapse(single.Content(x.unit.Text))}
		}
		return nil
	}
	var out []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		if strings.Contains(c.Type(), "comment") {
			continue
		}
		out = append(out, collapse(c.Content(x.unit.Text)))
	}
	return out
}

// doc returns the declaration's docstring, or the comment block directly
// above it.
func (x *extractor) doc(decl, spanNode *sitter.Node) string {
	text := x.unit.Text
	if x.grammar.Profile.Docstrings {
		return docstring(decl, text)
	}
	if len(x.grammar.docComments) == 0 {
		return ""
	}
	n := x.leading(spanNode)
	// `export function f` starts its statement; the comment sits above that.
	for n.PrevNamedSibling() == nil {
		p := n.Parent()
		if p == nil || p.StartPoint().Row != n.StartPoint().Row {
			return ""
		}
		n = p
	}

	var blocks []string
	next := n
	for c := n.PrevNamedSibling(); c != nil && x.grammar.docComments[c.Type()]; c = c.PrevNamedSibling() {
		if c.EndPoint().Row+1 < next.StartPoint().Row {
			break
		}
		// A trailing comment belongs to the code on its own line.
		if prev := c.PrevSibling(); prev != nil && prev.EndPoint().Row == c.StartPoint().Row && prev.EndPoint().Column > 0 {
			break
		}
		blocks = append([]string{c.Content(text)}, blocks...)
		next = c
	}
	return cleanComment(strings.Join(blocks, "\n"))
}

var commentPrefixes = []string{"/**", "/*!", "/*", "///", "//!", "//", "*"}

func cleanComment(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(strings.TrimSpace(line), "*/")
		for _, prefix := range commentPrefixes {
			if strings.HasPrefix(line, prefix) {
				line = strings.TrimPrefix(line, prefix)
				break
			}
		}
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// docstring returns the string literal opening decl's body block.
func docstring(decl *sitter.Node, text []byte) string {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return ""
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if strings.Contains(stmt.Type(), "comment") {
			continue
		}
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			return ""
		}
		lit := stmt.NamedChild(0)
		if lit.Type() != "string" {
			return ""
		}
		return cleanDocstring(lit.Content(text))
	}
	return ""
}

func cleanDocstring(s string) string {
	s = strings.TrimLeft(s, "rRuUbBfF")
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			s = s[len(q) : len(s)-len(q)]
			break
		}
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (x *extractor) declName(n *sitter.Node, rule DeclRule) string {
	text := x.unit.Text
	field := rule.NameField
	if field == "" {
		field = "name"
	}
	if nn := n.ChildByFieldName(field); nn != nil {
		return collapse(nn.Content(text))
	}
	if d := n.ChildByFieldName("declarator"); d != nil {
		if name := declaratorName(d, text); name != "" {
			return name
		}
	}
	if name := x.bindingName(n); name != "" {
		return name
	}
	p := n.StartPoint()
	return fmt.Sprintf("<anonymous@%d:%d>", p.Row+1, p.Column+1)
}

// declaratorName follows C-style declarator chains
// (pointer_declarator → function_declarator → identifier).
func declaratorName(d *sitter.Node, text []byte) string {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "type_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "scoped_identifier":
			return collapse(d.Content(text))
		}
		if next := d.ChildByFieldName("declarator"); next != nil {
			d = next
			continue
		}
		if name := d.ChildByFieldName("name"); name != nil {
			return collapse(name.Content(text))
		}
		return ""
	}
	return ""
}

// bindingName names an anonymous declaration after the target it is bound
// to, e.g. the left side of an assignment.
func (x *extractor) bindingName(n *sitter.Node) string {
	child, parent := n, n.Parent()
	for parent != nil && x.grammar.passThrough[parent.Type()] {
		child, parent = parent, parent.Parent()
	}
	if parent == nil {
		return ""
	}
	b, ok := x.grammar.Profile.Bindings[parent.Type()]
	if !ok {
		return ""
	}
	value := parent.ChildByFieldName(b.ValueField)
	if value == nil || !sameNode(value, child) {
		return ""
	}
	target := parent.ChildByFieldName(b.NameField)
	if target == nil {
		return ""
	}
	return collapse(target.Content(x.unit.Text))
}

func importName(n *sitter.Node, field string, text []byte) string {
	if field != "" {
		if f := n.ChildByFieldName(field); f != nil {
			return strings.Trim(collapse(f.Content(text)), "\"'`<>")
		}
	}
	s := collapse(n.Content(text))
	for _, prefix := range importPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(s, ";"))
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
