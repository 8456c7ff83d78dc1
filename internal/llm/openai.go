package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultGroqURL is the Groq OpenAI-compatible API root.
const DefaultGroqURL = "https://api.groq.com/openai/v1"

// OpenAICompatible calls a Chat Completions endpoint (Groq, OpenAI, vLLM).
type OpenAICompatible struct {
	name    string
	baseURL string
	apiKey  string
	models  Models
	client  *http.Client
}

// NewOpenAICompatible creates a provider for baseURL (without the
// /chat/completions suffix).
func NewOpenAICompatible(name, baseURL, apiKey string, models Models) *OpenAICompatible {
	if baseURL == "" {
		baseURL = DefaultGroqURL
	}
	return &OpenAICompatible{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		models:  models,
		client:  &http.Client{},
	}
}

func (c *OpenAICompatible) Name() string { return c.name }

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request.
func (c *OpenAICompatible) Complete(ctx context.Context, call Call) (string, error) {
	if c.apiKey == "" {
		return "", &ProviderError{Provider: c.name, Kind: AuthError, Err: errors.New("no API key configured")}
	}
	body, err := json.Marshal(completionRequest{
		Model:       c.models.For(call.Depth),
		Messages:    call.Messages(),
		Temperature: call.Temperature,
		MaxTokens:   call.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransport(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", classifyStatus(c.name, resp.StatusCode, resp.Header, respBody)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProviderError{Provider: c.name, Kind: ServerError, Err: fmt.Errorf("decode completion response: %w", err)}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &ProviderError{Provider: c.name, Kind: ServerError, Err: errors.New("empty completion")}
	}
	return out.Choices[0].Message.Content, nil
}
