package analyzer_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeguru/internal/analyzer"
	"codeguru/internal/analyzer/languages"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, lang string) func(src string) *analyzer.Analysis {
	t.Helper()
	a := analyzer.New(languages.NewRegistry())
	return func(src string) *analyzer.Analysis {
		t.Helper()
		res, err := a.Analyze(context.Background(), "", []byte(src), lang)
		require.NoError(t, err)
		checkInvariants(t, res.Entities)
		return res
	}
}

// checkInvariants asserts containment, sibling disjointness and document order.
func checkInvariants(t *testing.T, entities []analyzer.StructuralEntity) {
	t.Helper()
	require.NotEmpty(t, entities)
	require.Equal(t, analyzer.KindModule, entities[0].Kind)
	for i, e := range entities {
		assert.Equal(t, i, e.ID)
		assert.LessOrEqual(t, e.Span.StartLine, e.Span.EndLine, "entity %q", e.Name)
		if i == 0 {
			continue
		}
		assert.GreaterOrEqual(t, e.Span.StartByte, entities[i-1].Span.StartByte, "document order at %q", e.Name)
		require.GreaterOrEqual(t, e.Parent, 0)
		require.Less(t, e.Parent, i)
		parent := entities[e.Parent]
		assert.True(t, parent.Span.Contains(e.Span), "%q not inside %q", e.Name, parent.Name)
		for _, s := range entities[:i] {
			if s.Parent == e.Parent && s.ID != 0 {
				assert.False(t, s.Span.Overlaps(e.Span), "siblings %q and %q overlap", s.Name, e.Name)
			}
		}
	}
}

func byName(t *testing.T, entities []analyzer.StructuralEntity, name string) analyzer.StructuralEntity {
	t.Helper()
	e, ok := analyzer.Find(entities, name)
	require.True(t, ok, "entity %q not found", name)
	return e
}

func TestPythonComplexity(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "python")

	tests := []struct {
		name string
		src  string
		fn   string
		want int
	}{
		{
			name: "branch free",
			src:  "def greet(name):\n    return \"hi \" + name\n",
			fn:   "greet",
			want: 1,
		},
		{
			name: "if else and loop",
			src: `def walk(items):
    total = 0
    for item in items:
        if item > 0:
            total += item
        else:
            total -= item
    return total
`,
			fn:   "walk",
			want: 3,
		},
		{
			name: "boolean operator and except",
			src: `def safe(a, b):
    try:
        return a and b
    except ValueError:
        return None
`,
			fn:   "safe",
			want: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyze(tt.src)
			assert.Equal(t, tt.want, byName(t, res.Entities, tt.fn).Complexity)
		})
	}
}

func TestPythonClassMethods(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "python")

	res := analyze(`class Greeter:
    def __init__(self, name):
        self.name = name

    def greet(self):
        return self.name
`)
	require.Len(t, res.Entities, 4)
	cls := res.Entities[1]
	assert.Equal(t, analyzer.KindClass, cls.Kind)
	assert.Equal(t, "Greeter", cls.Name)
	assert.Equal(t, 0, cls.Parent)

	for _, e := range res.Entities[2:] {
		assert.Equal(t, analyzer.KindMethod, e.Kind)
		assert.Equal(t, cls.ID, e.Parent)
	}
	assert.Equal(t, "__init__", res.Entities[2].Name)
	assert.Equal(t, "greet", res.Entities[3].Name)
	assert.Equal(t, 5, res.Entities[3].Span.StartLine)
	assert.Equal(t, 6, res.Entities[3].Span.EndLine)
}

func TestPythonDecoratorAbsorbed(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "python")

	res := analyze("@cache\n@log\ndef compute(x):\n    return x\n")
	fn := byName(t, res.Entities, "compute")
	assert.Equal(t, 0, fn.Span.StartByte)
	assert.Equal(t, 1, fn.Span.StartLine)
	assert.Equal(t, 4, fn.Span.EndLine)
}

func TestPythonLambdaNamedByBinding(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "python")

	res := analyze("square = lambda x: x * x\nprint(lambda: 0)\n")
	fn := byName(t, res.Entities, "square")
	assert.Equal(t, analyzer.KindFunction, fn.Kind)

	var anon []string
	for _, e := range res.Entities {
		if strings.HasPrefix(e.Name, "<anonymous@") {
			anon = append(anon, e.Name)
		}
	}
	assert.Equal(t, []string{"<anonymous@2:7>"}, anon)
}

func TestPythonImports(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "python")

	res := analyze("import os\nfrom pathlib import Path\n")
	var names []string
	for _, e := range res.Entities {
		if e.Kind == analyzer.KindImport {
			names = append(names, e.Name)
			assert.Equal(t, 0, e.Complexity)
		}
	}
	assert.Equal(t, []string{"os", "pathlib"}, names)
	assert.Equal(t, 0, res.Entities[0].Complexity)
}

func TestMalformedInputRecovers(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "python")

	res := analyze("def ok():\n    return 1\n\nx = (1 +\n")
	assert.NotEmpty(t, res.Diagnostics)
	fn := byName(t, res.Entities, "ok")
	assert.Equal(t, analyzer.KindFunction, fn.Kind)
}

func TestUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	a := analyzer.New(languages.NewRegistry())

	_, err := a.Parse(context.Background(), []byte("IDENTIFICATION DIVISION."), "cobol")
	var unsupported *analyzer.UnsupportedLanguageError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "cobol", unsupported.Language)

	_, err = a.AnalyzeFile(context.Background(), "notes.txt")
	require.ErrorAs(t, err, &unsupported)
}

func TestGrammarLoadErrorIsCached(t *testing.T) {
	t.Parallel()
	calls := 0
	r := analyzer.NewRegistry()
	r.Register(&analyzer.LanguageProfile{
		Name:       "broken",
		Extensions: []string{"brk"},
		Grammar: func() *sitter.Language {
			calls++
			return nil
		},
		Declarations: map[string]analyzer.DeclRule{"function": {Kind: analyzer.KindFunction}},
	})
	a := analyzer.New(r)

	for i := 0; i < 3; i++ {
		_, err := a.Parse(context.Background(), []byte("x"), "broken")
		var loadErr *analyzer.GrammarLoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, "broken", loadErr.Language)
	}
	assert.Equal(t, 1, calls)
	assert.Error(t, a.Warm())
}

func TestWarmLoadsEveryGrammar(t *testing.T) {
	t.Parallel()
	a := analyzer.New(languages.NewRegistry())
	require.NoError(t, a.Warm())
}

func TestDeterminism(t *testing.T) {
	t.Parallel()
	a := analyzer.New(languages.NewRegistry())
	src := []byte(`import os

class A:
    @property
    def size(self):
        return len(os.listdir(".")) if self else 0

handler = lambda e: e
`)
	first, err := a.Analyze(context.Background(), "a.py", src, "python")
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), "a.py", src, "python")
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestJavaScript(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "js")

	res := analyze(`import { readFile } from "fs";

const add = (a, b) => a + b;

class Counter {
  inc(n) {
    if (n > 0 && this.ok) {
      this.v += n;
    }
  }
}

setTimeout(function () { run(); }, 10);
`)
	imp := res.Entities[1]
	assert.Equal(t, analyzer.KindImport, imp.Kind)
	assert.Equal(t, "fs", imp.Name)

	add := byName(t, res.Entities, "add")
	assert.Equal(t, analyzer.KindFunction, add.Kind)
	assert.Equal(t, 1, add.Complexity)

	inc := byName(t, res.Entities, "inc")
	assert.Equal(t, analyzer.KindMethod, inc.Kind)
	assert.Equal(t, "Counter", res.Entities[inc.Parent].Name)
	assert.Equal(t, 3, inc.Complexity)

	last := res.Entities[len(res.Entities)-1]
	assert.True(t, strings.HasPrefix(last.Name, "<anonymous@13:"), last.Name)
}

func TestGo(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "golang")

	res := analyze(`package main

import "fmt"

type server struct{}

func (s *server) run() {}

func main() {
	if len(os.Args) > 1 {
		fmt.Println("args")
	}
	handle := func() {}
	handle()
}
`)
	assert.Equal(t, "go", res.Language)
	assert.Equal(t, "fmt", byName(t, res.Entities, "fmt").Name)
	assert.Equal(t, analyzer.KindClass, byName(t, res.Entities, "server").Kind)
	assert.Equal(t, analyzer.KindMethod, byName(t, res.Entities, "run").Kind)

	main := byName(t, res.Entities, "main")
	assert.Equal(t, 2, main.Complexity)
	handle := byName(t, res.Entities, "handle")
	assert.Equal(t, main.ID, handle.Parent)
}

func TestRustAttributeAbsorbed(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "rust")

	res := analyze(`#[derive(Debug)]
struct Point {
    x: i32,
}

impl Point {
    fn norm(&self) -> i32 {
        if self.x < 0 { -self.x } else { self.x }
    }
}
`)
	point := res.Entities[1]
	assert.Equal(t, "Point", point.Name)
	assert.Equal(t, analyzer.KindClass, point.Kind)
	assert.Equal(t, 1, point.Span.StartLine)

	norm := byName(t, res.Entities, "norm")
	assert.Equal(t, analyzer.KindMethod, norm.Kind)
	assert.Equal(t, 2, norm.Complexity)
}

func TestCDeclarators(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "c")

	res := analyze(`#include <stdio.h>

struct point { int x; };

int *make(void) {
	for (int i = 0; i < 3; i++) {}
	return 0;
}
`)
	assert.Equal(t, "stdio.h", res.Entities[1].Name)
	assert.Equal(t, analyzer.KindClass, byName(t, res.Entities, "point").Kind)
	mk := byName(t, res.Entities, "make")
	assert.Equal(t, analyzer.KindFunction, mk.Kind)
	assert.Equal(t, 2, mk.Complexity)
}

func TestJavaMethods(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "java")

	res := analyze(`import java.util.List;

public class Repo {
    public int count(List<String> xs) {
        int n = 0;
        for (String x : xs) {
            n += x.isEmpty() ? 0 : 1;
        }
        return n;
    }
}
`)
	assert.Equal(t, "java.util.List", res.Entities[1].Name)
	count := byName(t, res.Entities, "count")
	assert.Equal(t, analyzer.KindMethod, count.Kind)
	assert.Equal(t, 3, count.Complexity)
}

func TestComputeComplexityMatchesExtraction(t *testing.T) {
	t.Parallel()
	a := analyzer.New(languages.NewRegistry())
	src := []byte(`import os

def f(x):
    while x:
        x -= 1
    return [y for y in range(3) if y]
`)
	u, err := a.Parse(context.Background(), src, "python")
	require.NoError(t, err)
	defer u.Close()

	entities := analyzer.ExtractEntities(u)
	for _, e := range entities {
		assert.Equal(t, e.Complexity, analyzer.ComputeComplexity(u, e), e.Name)
	}
	f := byName(t, entities, "f")
	assert.Equal(t, 4, f.Complexity)
	assert.Equal(t, 0, byName(t, entities, "os").Complexity)
}

func TestAnalyzeFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "tool.py")
	require.NoError(t, os.WriteFile(path, []byte("def run():\n    pass\n"), 0o644))

	a := analyzer.New(languages.NewRegistry(), analyzer.WithMaxFileSize(64))
	res, err := a.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "tool.py", res.Entities[0].Name)
	assert.Equal(t, 2, res.Entities[0].Span.EndLine)

	big := filepath.Join(dir, "big.py")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("x = 1\n", 20)), 0o644))
	_, err = a.AnalyzeFile(context.Background(), big)
	var tooLarge *analyzer.FileTooLargeError
	assert.True(t, errors.As(err, &tooLarge))
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()
	r := languages.NewRegistry()

	tests := map[string]string{
		"main.go":       "go",
		"app/index.tsx": "tsx",
		"lib.rs":        "rust",
		"x.hpp":         "cpp",
		"Main.java":     "java",
		"script.PY":     "python",
		"README.md":     "",
	}
	for path, want := range tests {
		assert.Equal(t, want, r.DetectLanguage(path), path)
	}
}

func TestRetain(t *testing.T) {
	t.Parallel()
	r := languages.NewRegistry()
	require.NoError(t, r.Retain([]string{"py", "go"}))
	assert.Equal(t, []string{"go", "python"}, r.Languages())
	assert.Equal(t, "", r.DetectLanguage("a.js"))

	assert.Error(t, languages.NewRegistry().Retain([]string{"cobol"}))
}

func TestTypeScriptDecoratorsAbsorbed(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "typescript")

	src := `import { Get } from "./http";

class Svc {
  @Get()
  list(): string[] {
    return [];
  }

  fetch(id: number, opts?: Options) {}
}

/** Renders the card. */
@Component({})
export class Cmp {
  render = () => (this.ok ? 1 : 0);
}
`
	res := analyze(src)
	assert.Equal(t, "./http", res.Entities[1].Name)

	list := byName(t, res.Entities, "list")
	assert.Equal(t, analyzer.KindMethod, list.Kind)
	assert.Equal(t, strings.Index(src, "@Get()"), list.Span.StartByte)
	assert.Equal(t, 4, list.Span.StartLine)

	fetch := byName(t, res.Entities, "fetch")
	assert.Equal(t, []string{"id: number", "opts?: Options"}, fetch.Parameters)

	cmp := byName(t, res.Entities, "Cmp")
	assert.Equal(t, analyzer.KindClass, cmp.Kind)
	assert.Equal(t, strings.Index(src, "@Component"), cmp.Span.StartByte)
	assert.Equal(t, "Renders the card.", cmp.Doc)

	render := byName(t, res.Entities, "render")
	assert.Equal(t, analyzer.KindMethod, render.Kind)
	assert.Equal(t, cmp.ID, render.Parent)
	assert.Equal(t, 2, render.Complexity)
}

func TestTSX(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "tsx")

	res := analyze(`export function Card({ title }: Props) {
  return <div>{title ? title : "none"}</div>;
}
`)
	card := byName(t, res.Entities, "Card")
	assert.Equal(t, analyzer.KindFunction, card.Kind)
	assert.Equal(t, []string{"{ title }: Props"}, card.Parameters)
	assert.Equal(t, 2, card.Complexity)
}

func TestCPPTemplatesAndLambdas(t *testing.T) {
	t.Parallel()
	analyze := setup(t, "cpp")

	res := analyze(`#include <vector>

// Box holds one value.
template <typename T>
class Box {
public:
    T get() const { return value; }
private:
    T value;
};

int sum(const std::vector<int>& xs) {
    int total = 0;
    auto add = [&total](int x) { total += x; };
    for (int x : xs) {
        if (x > 0 && x < 100) add(x);
    }
    switch (total) {
    case 0:
        return 0;
    default:
        return total;
    }
}
`)
	assert.Equal(t, "vector", res.Entities[1].Name)

	box := byName(t, res.Entities, "Box")
	assert.Equal(t, analyzer.KindClass, box.Kind)
	assert.Equal(t, 4, box.Span.StartLine, "template line is part of the class")
	assert.Equal(t, "Box holds one value.", box.Doc)

	get := byName(t, res.Entities, "get")
	assert.Equal(t, analyzer.KindMethod, get.Kind)
	assert.Equal(t, box.ID, get.Parent)

	sum := byName(t, res.Entities, "sum")
	assert.Equal(t, []string{"const std::vector<int>& xs"}, sum.Parameters)
	// for, if, &&, one non-default case.
	assert.Equal(t, 5, sum.Complexity)

	add := byName(t, res.Entities, "add")
	assert.Equal(t, analyzer.KindFunction, add.Kind)
	assert.Equal(t, sum.ID, add.Parent)
	assert.Equal(t, []string{"int x"}, add.Parameters)
}

func TestDefaultLabelsAreNotBranches(t *testing.T) {
	t.Parallel()

	java := setup(t, "java")(`class Router {
    int route(int code) {
        switch (code) {
            case 1:
                return 10;
            default:
                return 0;
        }
    }
}
`)
	assert.Equal(t, 2, byName(t, java.Entities, "route").Complexity)

	goRes := setup(t, "go")(`package router

func route(code int) int {
	switch code {
	case 1:
		return 10
	default:
		return 0
	}
}
`)
	assert.Equal(t, 2, byName(t, goRes.Entities, "route").Complexity)

	c := setup(t, "c")(`int route(int code) {
	switch (code) {
	case 1:
		return 10;
	default:
		return 0;
	}
}
`)
	assert.Equal(t, 2, byName(t, c.Entities, "route").Complexity)
}

func TestDocsAndParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		lang   string
		src    string
		entity string
		doc    string
		params []string
	}{
		{
			name: "python docstring",
			lang: "python",
			src: `def area(w, h=1, *rest):
    """Area of a rectangle.

    Returns w times h.
    """
    return w * h
`,
			entity: "area",
			doc:    "Area of a rectangle.\n\nReturns w times h.",
			params: []string{"w", "h=1", "*rest"},
		},
		{
			name: "go line comments",
			lang: "go",
			src: `package geo

// Area returns w times h.
// It never fails.
func Area(w, h int) int { return w * h }
`,
			entity: "Area",
			doc:    "Area returns w times h.\nIt never fails.",
			params: []string{"w, h int"},
		},
		{
			name: "rust doc above attribute",
			lang: "rust",
			src: `/// A point in the plane.
#[derive(Debug)]
struct Point { x: i32 }
`,
			entity: "Point",
			doc:    "A point in the plane.",
		},
		{
			name: "rust parameters",
			lang: "rust",
			src: `struct Point { x: i32 }

fn norm(p: &Point, scale: i32) -> i32 { p.x * scale }
`,
			entity: "norm",
			params: []string{"p: &Point", "scale: i32"},
		},
		{
			name: "jsdoc on export",
			lang: "javascript",
			src: `/**
 * Sums values.
 * @param {number[]} xs
 */
export function sum(xs) {
  return xs.reduce((a, b) => a + b, 0);
}
`,
			entity: "sum",
			doc:    "Sums values.\n@param {number[]} xs",
			params: []string{"xs"},
		},
		{
			name:   "bare arrow parameter",
			lang:   "javascript",
			src:    "const twice = x => x * 2; // doubles\n",
			entity: "twice",
			params: []string{"x"},
		},
		{
			name: "java javadoc",
			lang: "java",
			src: `class Router {
    /** Routes one code. */
    int route(int code) { return code; }
}
`,
			entity: "route",
			doc:    "Routes one code.",
			params: []string{"int code"},
		},
		{
			name: "comment separated by a blank line",
			lang: "go",
			src: `package geo

// unrelated

func Area() int { return 0 }
`,
			entity: "Area",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := setup(t, tt.lang)(tt.src)
			e := byName(t, res.Entities, tt.entity)
			assert.Equal(t, tt.doc, e.Doc)
			assert.Equal(t, tt.params, e.Parameters)
		})
	}
}
