package languages

import (
	"codeguru/internal/analyzer"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *analyzer.Registry) {
	r.Register(&analyzer.LanguageProfile{
		Name:       "go",
		Aliases:    []string{"golang"},
		Extensions: []string{"go"},
		Grammar:    golang.GetLanguage,
		Declarations: map[string]analyzer.DeclRule{
			"function_declaration": {Kind: analyzer.KindFunction},
			"method_declaration":   {Kind: analyzer.KindMethod},
			"func_literal":         {Kind: analyzer.KindFunction},
			"type_spec":            {Kind: analyzer.KindClass},
		},
		Imports: map[string]string{
			"import_spec": "path",
		},
		Branches: []string{
			"if_statement", "for_statement", "expression_case", "type_case",
			"communication_case",
		},
		ShortCircuit: map[string][]string{
			"binary_expression": {"&&", "||"},
		},
		Bindings: map[string]analyzer.Binding{
			"short_var_declaration": {NameField: "left", ValueField: "right"},
			"assignment_statement":  {NameField: "left", ValueField: "right"},
			"var_spec":              {NameField: "name", ValueField: "value"},
		},
		PassThrough: []string{"expression_list", "parenthesized_expression"},
		DocComments: []string{"comment"},
	})
}
