package analyzer

import "fmt"

// UnsupportedLanguageError is returned when no language profile is registered
// for a tag or file extension. Callers may fall back to a whole-text path.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	if e.Language == "" {
		return "unsupported language: could not detect language"
	}
	return fmt.Sprintf("unsupported language: %q", e.Language)
}

// GrammarLoadError is returned when a registered grammar cannot be
// initialized. It is cached per language and never retried.
type GrammarLoadError struct {
	Language string
	Err      error
}

func (e *GrammarLoadError) Error() string {
	return fmt.Sprintf("load grammar %s: %v", e.Language, e.Err)
}

func (e *GrammarLoadError) Unwrap() error { return e.Err }

// ParseDiagnostic describes a syntax problem found while parsing. Diagnostics
// are attached to the SourceUnit; they never abort analysis.
type ParseDiagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (d ParseDiagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// FileTooLargeError is returned by AnalyzeFile for files above the size limit.
type FileTooLargeError struct {
	Path    string
	Size    int64
	MaxSize int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s is too large: %d KB (max %d KB)", e.Path, e.Size/1024, e.MaxSize/1024)
}
