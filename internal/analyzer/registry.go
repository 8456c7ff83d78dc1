package analyzer

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

type registryEntry struct {
	profile *LanguageProfile
	once    sync.Once
	grammar *Grammar
	err     error
}

// Registry maps language tags, aliases and file extensions to profiles.
// Grammars are loaded lazily, once; a load failure is cached.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry // canonical name → entry
	aliases map[string]string         // tag or alias → canonical name
	exts    map[string]string         // extension (without dot) → canonical name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		aliases: make(map[string]string),
		exts:    make(map[string]string),
	}
}

// Register adds a language profile under its name and aliases.
func (r *Registry) Register(p *LanguageProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.Name] = &registryEntry{profile: p}
	r.aliases[p.Name] = p.Name
	for _, a := range p.Aliases {
		r.aliases[strings.ToLower(a)] = p.Name
	}
	for _, ext := range p.Extensions {
		r.exts[strings.TrimPrefix(strings.ToLower(ext), ".")] = p.Name
	}
}

// Retain drops every language not named in keep. Unknown names are an error.
func (r *Registry) Retain(keep []string) error {
	if len(keep) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(keep))
	for _, name := range keep {
		canonical, ok := r.canonical(name)
		if !ok {
			return fmt.Errorf("unknown language %q", name)
		}
		wanted[canonical] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.entries {
		if !wanted[name] {
			delete(r.entries, name)
		}
	}
	for alias, name := range r.aliases {
		if !wanted[name] {
			delete(r.aliases, alias)
		}
	}
	for ext, name := range r.exts {
		if !wanted[name] {
			delete(r.exts, ext)
		}
	}
	return nil
}

func (r *Registry) canonical(tag string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.aliases[strings.ToLower(strings.TrimSpace(tag))]
	return name, ok
}

// Profile returns the profile registered for a tag or alias.
func (r *Registry) Profile(tag string) (*LanguageProfile, bool) {
	name, ok := r.canonical(tag)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.profile, true
}

// Grammar returns the loaded grammar for a tag. It fails with
// *UnsupportedLanguageError for unknown tags and with a cached
// *GrammarLoadError when the grammar cannot be initialized.
func (r *Registry) Grammar(tag string) (*Grammar, error) {
	name, ok := r.canonical(tag)
	if !ok {
		return nil, &UnsupportedLanguageError{Language: tag}
	}
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedLanguageError{Language: tag}
	}
	e.once.Do(func() {
		g, err := loadGrammar(e.profile)
		if err != nil {
			e.err = &GrammarLoadError{Language: name, Err: err}
			return
		}
		e.grammar = g
	})
	return e.grammar, e.err
}

// DetectLanguage returns the language name for a file path, or "".
func (r *Registry) DetectLanguage(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exts[ext]
}

// Languages returns the registered language names in sorted order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.exts))
	for ext := range r.exts {
		exts[ext] = true
	}
	return exts
}
