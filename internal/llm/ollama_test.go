package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"a loop"}}`))
	}))
	defer srv.Close()

	o := NewOllama("local", srv.URL, Models{Default: "llama3", ByDepth: map[Depth]string{DepthDeep: "codellama"}})
	text, err := o.Complete(context.Background(), Call{Prompt: "explain", System: "be brief", Depth: DepthDeep})
	require.NoError(t, err)
	assert.Equal(t, "a loop", text)
	assert.Equal(t, "codellama", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "explain", got.Messages[1].Content)
}

func TestOllamaClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    map[string]string
		wantKind  FailureKind
		wantRetry time.Duration
	}{
		{name: "rate limited", status: 429, header: map[string]string{"Retry-After": "2"}, wantKind: RateLimited, wantRetry: 2 * time.Second},
		{name: "unauthorized", status: 401, wantKind: AuthError},
		{name: "server", status: 500, wantKind: ServerError},
		{name: "gateway timeout", status: 504, wantKind: Timeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewOllama("", srv.URL, Models{Default: "m"}).Complete(context.Background(), Call{Prompt: "p"})
			var pErr *ProviderError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, "ollama", pErr.Provider)
			assert.Equal(t, tt.wantKind, pErr.Kind)
			assert.Equal(t, tt.wantRetry, pErr.RetryAfter)
		})
	}
}

func TestOllamaTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewOllama("", srv.URL, Models{Default: "m"}).Complete(ctx, Call{Prompt: "p"})
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, Timeout, pErr.Kind)
}

func TestOllamaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllama("", url, Models{Default: "m"}).Complete(context.Background(), Call{Prompt: "p"})
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, NetworkError, pErr.Kind)
}
