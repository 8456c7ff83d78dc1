package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGemini(context.Background(), "", "secret", srv.URL, Models{
		Default: "gemini-2.0-flash",
		ByDepth: map[Depth]string{DepthDeep: "gemini-2.5-pro"},
	})
	require.NoError(t, err)
	return g
}

func TestGeminiComplete(t *testing.T) {
	var body map[string]any
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-pro:generateContent"), r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]}}]}`))
	})

	text, err := g.Complete(context.Background(), Call{Prompt: "p", System: "be brief", Depth: DepthDeep})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "gemini", g.Name())
	assert.Contains(t, body, "systemInstruction")
}

func TestGeminiRateLimitRetryInfo(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED",
			"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"37s"}]}}`))
	})

	_, err := g.Complete(context.Background(), Call{Prompt: "p"})
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, RateLimited, pErr.Kind)
	assert.Equal(t, "gemini", pErr.Provider)
	assert.Equal(t, 37*time.Second, pErr.RetryAfter)
}

func TestGeminiAuthAndEmpty(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	})
	_, err := g.Complete(context.Background(), Call{Prompt: "p"})
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, AuthError, pErr.Kind)

	g = newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  "}]}}]}`))
	})
	_, err = g.Complete(context.Background(), Call{Prompt: "p"})
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, ServerError, pErr.Kind)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryDelay(nil))
	assert.Equal(t, 1500*time.Millisecond, retryDelay([]map[string]any{
		{"@type": "type.googleapis.com/google.rpc.ErrorInfo", "reason": "RATE_LIMIT_EXCEEDED"},
		{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "1.5s"},
	}))
	assert.Equal(t, time.Duration(0), retryDelay([]map[string]any{
		{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "soon"},
	}))
}
