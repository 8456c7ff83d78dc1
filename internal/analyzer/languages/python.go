package languages

import (
	"codeguru/internal/analyzer"

	"github.com/smacker/go-tree-sitter/python"
)

func RegisterPython(r *analyzer.Registry) {
	r.Register(&analyzer.LanguageProfile{
		Name:       "python",
		Aliases:    []string{"py"},
		Extensions: []string{"py", "pyi"},
		Grammar:    python.GetLanguage,
		Declarations: map[string]analyzer.DeclRule{
			"function_definition": {Kind: analyzer.KindFunction},
			"class_definition":    {Kind: analyzer.KindClass},
			"lambda":              {Kind: analyzer.KindFunction},
		},
		Imports: map[string]string{
			"import_statement":        "",
			"import_from_statement":   "module_name",
			"future_import_statement": "",
		},
		Branches: []string{
			"if_statement", "elif_clause", "for_statement", "while_statement",
			"except_clause", "conditional_expression", "boolean_operator",
			"case_clause", "for_in_clause", "if_clause",
		},
		Bindings: map[string]analyzer.Binding{
			"assignment":        {NameField: "left", ValueField: "right"},
			"keyword_argument":  {NameField: "name", ValueField: "value"},
			"default_parameter": {NameField: "name", ValueField: "value"},
			"pair":              {NameField: "key", ValueField: "value"},
		},
		PassThrough: []string{"parenthesized_expression"},
		Wrappers:    []string{"decorated_definition"},
		Docstrings:  true,
	})
}
