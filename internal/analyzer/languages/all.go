package languages

import "codeguru/internal/analyzer"

// RegisterAll registers every supported language.
func RegisterAll(r *analyzer.Registry) {
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterTSX(r)
	RegisterGo(r)
	RegisterJava(r)
	RegisterC(r)
	RegisterCPP(r)
	RegisterRust(r)
}

// NewRegistry returns a registry with every supported language.
func NewRegistry() *analyzer.Registry {
	r := analyzer.NewRegistry()
	RegisterAll(r)
	return r
}
