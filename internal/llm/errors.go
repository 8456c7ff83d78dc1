package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FailureKind classifies a failed provider call.
type FailureKind string

const (
	RateLimited  FailureKind = "rate_limited"
	AuthError    FailureKind = "auth_error"
	ServerError  FailureKind = "server_error"
	NetworkError FailureKind = "network_error"
	Timeout      FailureKind = "timeout"
)

// ProviderError is a classified provider failure. RetryAfter is only set for
// RateLimited failures that carried a wait hint.
type ProviderError struct {
	Provider   string
	Kind       FailureKind
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Kind == RateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %s): %v", e.Provider, e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError classifies any error from a provider call. Errors that are
// already classified pass through.
func AsProviderError(provider string, err error) *ProviderError {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr
	}
	return classifyTransport(provider, err)
}

// classifyTransport handles errors that happen before a response arrives.
func classifyTransport(provider string, err error) *ProviderError {
	kind := NetworkError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = Timeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = Timeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// classifyStatus maps a non-2xx HTTP response to a failure kind.
func classifyStatus(provider string, status int, h http.Header, body []byte) *ProviderError {
	const max = 512
	if len(body) > max {
		body = body[:max]
	}
	err := fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusTooManyRequests:
		return &ProviderError{Provider: provider, Kind: RateLimited, RetryAfter: RetryAfter(h), Err: err}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Provider: provider, Kind: AuthError, Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &ProviderError{Provider: provider, Kind: Timeout, Err: err}
	default:
		return &ProviderError{Provider: provider, Kind: ServerError, Err: err}
	}
}

// RateLimitHeaders holds the rate-limit signals of an OpenAI-compatible
// response.
type RateLimitHeaders struct {
	RetryAfterSeconds int

	RemainingRequests int
	RemainingTokens   int
	ResetRequests     time.Duration
	ResetTokens       time.Duration
}

// ParseRateLimitHeaders reads retry-after and the x-ratelimit-* headers.
func ParseRateLimitHeaders(h http.Header) (RateLimitHeaders, bool) {
	out := RateLimitHeaders{RemainingRequests: -1, RemainingTokens: -1}
	found := false

	readInt := func(key string) (int, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	readDur := func(key string) (time.Duration, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	}

	if v, ok := readInt("retry-after"); ok {
		out.RetryAfterSeconds = v
		found = true
	} else if v := strings.TrimSpace(h.Get("retry-after")); v != "" {
		if at, err := http.ParseTime(v); err == nil {
			if secs := int(time.Until(at).Seconds() + 0.5); secs > 0 {
				out.RetryAfterSeconds = secs
			}
			found = true
		}
	}
	if v, ok := readInt("x-ratelimit-remaining-requests"); ok {
		out.RemainingRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-tokens"); ok {
		out.RemainingTokens = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-requests"); ok {
		out.ResetRequests = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-tokens"); ok {
		out.ResetTokens = v
		found = true
	}
	return out, found
}

// NextWait returns how long to wait before the next request. An explicit
// retry-after wins; otherwise an exhausted budget waits for its reset.
func (r RateLimitHeaders) NextWait() time.Duration {
	if r.RetryAfterSeconds > 0 {
		return time.Duration(r.RetryAfterSeconds) * time.Second
	}
	if r.RemainingTokens == 0 && r.ResetTokens > 0 {
		return r.ResetTokens
	}
	if r.RemainingRequests == 0 && r.ResetRequests > 0 {
		return r.ResetRequests
	}
	return 0
}

// RetryAfter extracts the wait hint from response headers, or 0.
func RetryAfter(h http.Header) time.Duration {
	rl, ok := ParseRateLimitHeaders(h)
	if !ok {
		return 0
	}
	return rl.NextWait()
}
