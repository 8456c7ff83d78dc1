package languages

import (
	"codeguru/internal/analyzer"

	"github.com/smacker/go-tree-sitter/rust"
)

func RegisterRust(r *analyzer.Registry) {
	r.Register(&analyzer.LanguageProfile{
		Name:       "rust",
		Aliases:    []string{"rs"},
		Extensions: []string{"rs"},
		Grammar:    rust.GetLanguage,
		Declarations: map[string]analyzer.DeclRule{
			"function_item":      {Kind: analyzer.KindFunction},
			"closure_expression": {Kind: analyzer.KindFunction},
			"struct_item":        {Kind: analyzer.KindClass},
			"enum_item":          {Kind: analyzer.KindClass},
			"trait_item":         {Kind: analyzer.KindClass},
			"impl_item":          {Kind: analyzer.KindClass, NameField: "type"},
		},
		Imports: map[string]string{
			"use_declaration": "argument",
		},
		Branches: []string{
			"if_expression", "if_let_expression", "for_expression", "while_expression",
			"while_let_expression", "loop_expression", "match_arm", "try_expression",
		},
		ShortCircuit: map[string][]string{
			"binary_expression": {"&&", "||"},
		},
		Bindings: map[string]analyzer.Binding{
			"let_declaration": {NameField: "pattern", ValueField: "value"},
		},
		Annotations: []string{"attribute_item"},
		DocComments: []string{"line_comment", "block_comment"},
	})
}
