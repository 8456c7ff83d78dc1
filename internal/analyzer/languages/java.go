package languages

import (
	"codeguru/internal/analyzer"

	"github.com/smacker/go-tree-sitter/java"
)

func RegisterJava(r *analyzer.Registry) {
	r.Register(&analyzer.LanguageProfile{
		Name:       "java",
		Extensions: []string{"java"},
		Grammar:    java.GetLanguage,
		Declarations: map[string]analyzer.DeclRule{
			"class_declaration":       {Kind: analyzer.KindClass},
			"interface_declaration":   {Kind: analyzer.KindClass},
			"enum_declaration":        {Kind: analyzer.KindClass},
			"record_declaration":      {Kind: analyzer.KindClass},
			"method_declaration":      {Kind: analyzer.KindMethod},
			"constructor_declaration": {Kind: analyzer.KindMethod},
			"lambda_expression":       {Kind: analyzer.KindFunction},
		},
		Imports: map[string]string{
			"import_declaration": "",
		},
		Branches: []string{
			"if_statement", "for_statement", "enhanced_for_statement", "while_statement",
			"do_statement", "catch_clause", "ternary_expression",
		},
		CaseLabels: []string{"switch_label"},
		ShortCircuit: map[string][]string{
			"binary_expression": {"&&", "||"},
		},
		Bindings: map[string]analyzer.Binding{
			"variable_declarator": {NameField: "name", ValueField: "value"},
		},
		PassThrough: []string{"parenthesized_expression"},
		DocComments: []string{"block_comment", "line_comment", "comment"},
	})
}
