package generate

import (
	"fmt"
	"strings"
	"time"

	"codeguru/internal/llm"
)

// Outcome describes what happened to one provider in a route.
type Outcome string

const (
	OutcomeFailed        Outcome = "failed"
	OutcomeCooldown      Outcome = "skipped_cooldown"
	OutcomeNotConfigured Outcome = "not_configured"
)

// Attempt is one provider's result within a failed route.
type Attempt struct {
	Provider      string
	Outcome       Outcome
	Kind          llm.FailureKind
	CooldownUntil time.Time
	Err           error
}

func (a Attempt) String() string {
	switch a.Outcome {
	case OutcomeCooldown:
		return fmt.Sprintf("%s: skipped, cooling down until %s", a.Provider, a.CooldownUntil.Format(time.TimeOnly))
	case OutcomeNotConfigured:
		return fmt.Sprintf("%s: not configured", a.Provider)
	default:
		if a.Err == nil {
			return fmt.Sprintf("%s: %s", a.Provider, a.Kind)
		}
		return a.Err.Error()
	}
}

// AllProvidersFailedError is returned once every provider in the route has
// been tried or skipped.
type AllProvidersFailedError struct {
	Key      string
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all providers failed: no providers in route"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the provider errors to errors.As.
func (e *AllProvidersFailedError) Unwrap() []error {
	var errs []error
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Only reports whether every attempted provider failed with the given kind.
func (e *AllProvidersFailedError) Only(kind llm.FailureKind) bool {
	seen := false
	for _, a := range e.Attempts {
		if a.Outcome != OutcomeFailed {
			continue
		}
		if a.Kind != kind {
			return false
		}
		seen = true
	}
	return seen
}
