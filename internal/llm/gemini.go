package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

// Gemini calls the Gemini API through the official genai client.
type Gemini struct {
	name   string
	models Models
	cli    *genai.Client
}

// NewGemini creates a Gemini provider. baseURL is optional and only used to
// point the client at a proxy or test server.
func NewGemini(ctx context.Context, name, apiKey, baseURL string, models Models) (*Gemini, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if name == "" {
		name = "gemini"
	}
	return &Gemini{name: name, models: models, cli: cli}, nil
}

func (g *Gemini) Name() string { return g.name }

// Complete sends one GenerateContent request.
func (g *Gemini) Complete(ctx context.Context, call Call) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if call.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: call.System}}}
	}
	if call.Temperature > 0 {
		t := float32(call.Temperature)
		cfg.Temperature = &t
	}
	if call.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(call.MaxTokens)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.models.For(call.Depth),
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: call.Prompt}}}},
		cfg,
	)
	if err != nil {
		return "", g.classify(err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &ProviderError{Provider: g.name, Kind: ServerError, Err: errors.New("empty response")}
	}
	return text, nil
}

func (g *Gemini) classify(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return classifyTransport(g.name, err)
		}
		apiErr = *ptr
	}
	pErr := classifyStatus(g.name, apiErr.Code, http.Header{}, []byte(apiErr.Message))
	if pErr.Kind == RateLimited && pErr.RetryAfter == 0 {
		pErr.RetryAfter = retryDelay(apiErr.Details)
	}
	return pErr
}

// retryDelay reads the google.rpc.RetryInfo detail the Gemini API attaches
// to quota errors, e.g. {"@type": ".../google.rpc.RetryInfo", "retryDelay": "37s"}.
func retryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if wait, err := time.ParseDuration(raw); err == nil && wait > 0 {
			return wait
		}
	}
	return 0
}
