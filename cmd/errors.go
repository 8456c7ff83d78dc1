package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"codeguru/internal/analyzer"
	"codeguru/internal/analyzer/languages"
	"codeguru/internal/config"
	"codeguru/internal/explain"
	"codeguru/internal/generate"
	"codeguru/internal/llm"
)

// suggest returns a hint for the errors users can act on, or "".
func suggest(err error) string {
	var (
		unsupported *analyzer.UnsupportedLanguageError
		tooLarge    *analyzer.FileTooLargeError
		grammar     *analyzer.GrammarLoadError
		exhausted   *generate.AllProvidersFailedError
		cfgErr      *config.ConfigError
		notFound    *explain.EntityNotFoundError
	)
	switch {
	case errors.As(err, &unsupported):
		return "Supported languages: " + strings.Join(languages.NewRegistry().Languages(), ", ") +
			"\nUse --language to override detection."
	case errors.As(err, &tooLarge):
		return fmt.Sprintf("Split the file, explain a single --function, or raise max_file_size (now %d bytes).", tooLarge.MaxSize)
	case errors.As(err, &grammar):
		return "The grammar is compiled into the binary; rebuild codeguru or drop the language from the languages setting."
	case errors.As(err, &exhausted):
		return providerHint(exhausted)
	case errors.As(err, &cfgErr):
		return "Check codeguru.yaml (or the file given with --config)."
	case errors.As(err, &notFound):
		if len(notFound.Candidates) == 0 {
			return fmt.Sprintf("%s has no %s definitions.", notFound.Path, notFound.Kind)
		}
		return "Available: " + strings.Join(notFound.Candidates, ", ")
	case errors.Is(err, os.ErrNotExist):
		wd, _ := os.Getwd()
		return "Check the path. Current directory: " + wd
	case errors.Is(err, os.ErrPermission):
		return "Check file permissions."
	}
	return ""
}

func providerHint(e *generate.AllProvidersFailedError) string {
	switch {
	case len(e.Attempts) == 0:
		return "No providers are configured. Set provider_order in codeguru.yaml."
	case e.Only(llm.AuthError):
		return "Every provider rejected its credentials. Check the variables named by api_key_env."
	case e.Only(llm.RateLimited):
		return "Every provider is rate limiting. Wait a minute and retry."
	}
	var lines []string
	for _, a := range e.Attempts {
		switch {
		case a.Outcome == generate.OutcomeNotConfigured:
			lines = append(lines, fmt.Sprintf("• %s is not configured (missing credentials?)", a.Provider))
		case a.Kind == llm.NetworkError && strings.Contains(a.Provider, "ollama"):
			lines = append(lines, "• Make sure Ollama is running: ollama serve")
		case a.Kind == llm.NetworkError:
			lines = append(lines, fmt.Sprintf("• %s is unreachable; check your connection", a.Provider))
		}
	}
	return strings.Join(lines, "\n")
}
