package languages

import (
	"codeguru/internal/analyzer"

	"github.com/smacker/go-tree-sitter/c"
)

func RegisterC(r *analyzer.Registry) {
	r.Register(&analyzer.LanguageProfile{
		Name:       "c",
		Extensions: []string{"c", "h"},
		Grammar:    c.GetLanguage,
		Declarations: map[string]analyzer.DeclRule{
			"function_definition": {Kind: analyzer.KindFunction},
			// Only definitions with a body; `struct point p;` is a use.
			"struct_specifier": {Kind: analyzer.KindClass, RequireField: "body"},
		},
		Imports: map[string]string{
			"preproc_include": "path",
		},
		Branches:   cBranches,
		CaseLabels: cCaseLabels,
		ShortCircuit: map[string][]string{
			"binary_expression": {"&&", "||"},
		},
		Bindings: map[string]analyzer.Binding{
			"init_declarator": {NameField: "declarator", ValueField: "value"},
		},
		DocComments: []string{"comment"},
	})
}

var cBranches = []string{
	"if_statement", "for_statement", "while_statement", "do_statement",
	"conditional_expression",
}

var cCaseLabels = []string{"case_statement"}
