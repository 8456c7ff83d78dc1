package languages

import (
	"codeguru/internal/analyzer"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func RegisterTypeScript(r *analyzer.Registry) {
	r.Register(typeScriptProfile("typescript", []string{"ts"}, []string{"ts", "mts", "cts"}, typescript.GetLanguage))
}

func RegisterTSX(r *analyzer.Registry) {
	r.Register(typeScriptProfile("tsx", nil, []string{"tsx"}, tsx.GetLanguage))
}

func typeScriptProfile(name string, aliases, exts []string, grammar func() *sitter.Language) *analyzer.LanguageProfile {
	p := ecmaProfile(name, aliases, exts, grammar)
	p.Declarations["abstract_class_declaration"] = analyzer.DeclRule{Kind: analyzer.KindClass}
	p.Declarations["interface_declaration"] = analyzer.DeclRule{Kind: analyzer.KindClass}
	return p
}
