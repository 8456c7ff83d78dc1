package languages

import (
	"codeguru/internal/analyzer"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

func RegisterJavaScript(r *analyzer.Registry) {
	r.Register(ecmaProfile("javascript", []string{"js"}, []string{"js", "jsx", "mjs", "cjs"}, javascript.GetLanguage))
}

// ecmaProfile holds the rules shared by JavaScript, TypeScript and TSX.
func ecmaProfile(name string, aliases, exts []string, grammar func() *sitter.Language) *analyzer.LanguageProfile {
	return &analyzer.LanguageProfile{
		Name:       name,
		Aliases:    aliases,
		Extensions: exts,
		Grammar:    grammar,
		Declarations: map[string]analyzer.DeclRule{
			"function_declaration":           {Kind: analyzer.KindFunction},
			"generator_function_declaration": {Kind: analyzer.KindFunction},
			"function_expression":            {Kind: analyzer.KindFunction},
			"function":                       {Kind: analyzer.KindFunction},
			"generator_function":             {Kind: analyzer.KindFunction},
			"arrow_function":                 {Kind: analyzer.KindFunction},
			"class_declaration":              {Kind: analyzer.KindClass},
			"class":                          {Kind: analyzer.KindClass},
			"method_definition":              {Kind: analyzer.KindMethod},
		},
		Imports: map[string]string{
			"import_statement": "source",
		},
		Branches: []string{
			"if_statement", "for_statement", "for_in_statement", "while_statement",
			"do_statement", "switch_case", "catch_clause", "ternary_expression",
		},
		ShortCircuit: map[string][]string{
			"binary_expression": {"&&", "||", "??"},
		},
		Bindings: map[string]analyzer.Binding{
			"variable_declarator":     {NameField: "name", ValueField: "value"},
			"assignment_expression":   {NameField: "left", ValueField: "right"},
			"pair":                    {NameField: "key", ValueField: "value"},
			"field_definition":        {NameField: "property", ValueField: "value"},
			"public_field_definition": {NameField: "name", ValueField: "value"},
		},
		PassThrough: []string{"parenthesized_expression"},
		Annotations: []string{"decorator"},
		DocComments: []string{"comment"},
	}
}
