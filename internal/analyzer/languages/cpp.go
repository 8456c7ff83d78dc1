package languages

import (
	"codeguru/internal/analyzer"

	"github.com/smacker/go-tree-sitter/cpp"
)

func RegisterCPP(r *analyzer.Registry) {
	r.Register(&analyzer.LanguageProfile{
		Name:       "cpp",
		Aliases:    []string{"c++"},
		Extensions: []string{"cpp", "cc", "cxx", "hpp", "hh"},
		Grammar:    cpp.GetLanguage,
		Declarations: map[string]analyzer.DeclRule{
			"function_definition": {Kind: analyzer.KindFunction},
			"struct_specifier":    {Kind: analyzer.KindClass, RequireField: "body"},
			"class_specifier":     {Kind: analyzer.KindClass, RequireField: "body"},
			"lambda_expression":   {Kind: analyzer.KindFunction},
		},
		Imports: map[string]string{
			"preproc_include": "path",
		},
		Branches:   append([]string{"for_range_loop", "catch_clause"}, cBranches...),
		CaseLabels: cCaseLabels,
		ShortCircuit: map[string][]string{
			"binary_expression": {"&&", "||", "and", "or"},
		},
		Bindings: map[string]analyzer.Binding{
			"init_declarator": {NameField: "declarator", ValueField: "value"},
		},
		Wrappers:    []string{"template_declaration"},
		DocComments: []string{"comment"},
	})
}
