package explain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"codeguru/internal/analyzer"
	"codeguru/internal/generate"
	"codeguru/internal/llm"
)

// Target selects what to explain. Text is read from Path when nil. With
// neither Function nor Class set, the whole file is explained.
type Target struct {
	Path     string
	Text     []byte
	Language string
	Function string
	Class    string
	Depth    llm.Depth
}

// Prepared is a request ready to send, with the context it was built from.
type Prepared struct {
	Request generate.Request
	// Bundle is nil when the text was explained without structure.
	Bundle   *analyzer.ContextBundle
	Fallback bool
}

// Explanation is the generated text and the context behind it.
type Explanation struct {
	*Prepared
	Text string
}

// EntityNotFoundError reports a function or class that is not in the file.
type EntityNotFoundError struct {
	Name       string
	Kind       analyzer.EntityKind
	Path       string
	Candidates []string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in %s", e.Kind, e.Name, e.Path)
}

// Engine turns targets into explanations through the analyzer and the
// generation client.
type Engine struct {
	analyzer *analyzer.Analyzer
	client   *generate.Client
	order    []string
	debug    *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebug sets the logger for prompt assembly detail.
func WithDebug(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.debug = l
		}
	}
}

// NewEngine creates an engine routing requests through order.
func NewEngine(a *analyzer.Analyzer, c *generate.Client, order []string, opts ...Option) *Engine {
	e := &Engine{analyzer: a, client: c, order: order, debug: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prepare analyzes the target and assembles its prompt without calling any
// provider. Text in a language without a profile falls back to a
// whole-text prompt unless a specific entity was requested.
func (e *Engine) Prepare(ctx context.Context, t Target) (*Prepared, error) {
	if t.Depth == "" {
		t.Depth = llm.DepthDetailed
	}
	text := t.Text
	if text == nil {
		src, err := e.analyzer.ReadSource(t.Path)
		if err != nil {
			return nil, err
		}
		text = src
	}
	lang := t.Language
	if lang == "" {
		lang = e.analyzer.Registry().DetectLanguage(t.Path)
	}

	res, err := e.analyze(ctx, t.Path, text, lang)
	var unsupported *analyzer.UnsupportedLanguageError
	if errors.As(err, &unsupported) {
		if t.Function != "" || t.Class != "" {
			return nil, err
		}
		e.debug.Printf("explain: %s: %v, explaining whole text", t.Path, err)
		fallbackLang := lang
		if fallbackLang == "" {
			fallbackLang = strings.TrimPrefix(filepath.Ext(t.Path), ".")
		}
		return &Prepared{
			Request:  e.request(WholeTextPrompt(t.Path, fallbackLang, text, t.Depth), t.Depth, fallbackLang),
			Fallback: true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	id := 0
	switch {
	case t.Function != "":
		id, err = locate(res, t.Path, t.Function, analyzer.KindFunction, analyzer.KindFunction, analyzer.KindMethod)
	case t.Class != "":
		id, err = locate(res, t.Path, t.Class, analyzer.KindClass, analyzer.KindClass)
	}
	if err != nil {
		return nil, err
	}

	b, err := analyzer.BuildContext(res, text, id)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	e.debug.Printf("explain: %s %q, %d imports, %d dependencies", b.Entity.Kind, b.Entity.Name, len(b.Imports), len(b.Dependencies))
	return &Prepared{
		Request: e.request(BuildPrompt(b, t.Depth), t.Depth, res.Language),
		Bundle:  b,
	}, nil
}

func (e *Engine) analyze(ctx context.Context, path string, text []byte, lang string) (*analyzer.Analysis, error) {
	if lang == "" {
		return nil, &analyzer.UnsupportedLanguageError{Language: strings.TrimPrefix(filepath.Ext(path), ".")}
	}
	return e.analyzer.Analyze(ctx, path, text, lang)
}

func (e *Engine) request(prompt string, d llm.Depth, lang string) generate.Request {
	return generate.Request{
		Prompt:   prompt,
		System:   SystemPrompt(d),
		Depth:    d,
		Language: lang,
	}
}

func locate(res *analyzer.Analysis, path, name string, kind analyzer.EntityKind, kinds ...analyzer.EntityKind) (int, error) {
	if ent, ok := analyzer.Find(res.Entities, name, kinds...); ok {
		return ent.ID, nil
	}
	nf := &EntityNotFoundError{Name: name, Kind: kind, Path: path}
	for _, ent := range res.Entities {
		for _, k := range kinds {
			if ent.Kind == k && !strings.HasPrefix(ent.Name, "<") {
				nf.Candidates = append(nf.Candidates, ent.Name)
				break
			}
		}
	}
	return 0, nf
}

// Explain prepares the target and generates its explanation.
func (e *Engine) Explain(ctx context.Context, t Target) (*Explanation, error) {
	p, err := e.Prepare(ctx, t)
	if err != nil {
		return nil, err
	}
	text, err := e.client.Generate(ctx, p.Request, e.order)
	if err != nil {
		return nil, err
	}
	return &Explanation{Prepared: p, Text: text}, nil
}

// ExplainAsync prepares the target and starts generation in the background.
func (e *Engine) ExplainAsync(ctx context.Context, t Target) (*Prepared, *generate.Future, error) {
	p, err := e.Prepare(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return p, e.client.GenerateAsync(ctx, p.Request, e.order), nil
}

// ConceptRequest builds the request explaining a programming concept.
func ConceptRequest(name string, d llm.Depth) generate.Request {
	if d == "" {
		d = llm.DepthDetailed
	}
	return generate.Request{
		Prompt:   ConceptPrompt(name),
		System:   SystemPrompt(d),
		Depth:    d,
		Language: "concept",
	}
}

// Concept explains a programming concept through the same client.
func (e *Engine) Concept(ctx context.Context, name string, d llm.Depth) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("concept name is empty")
	}
	return e.client.Generate(ctx, ConceptRequest(name, d), e.order)
}

// ConceptAsync starts a concept explanation in the background.
func (e *Engine) ConceptAsync(ctx context.Context, name string, d llm.Depth) *generate.Future {
	return e.client.GenerateAsync(ctx, ConceptRequest(name, d), e.order)
}
