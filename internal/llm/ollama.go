package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Ollama calls a local Ollama instance through /api/chat.
type Ollama struct {
	name    string
	baseURL string
	models  Models
	client  *http.Client
}

// NewOllama creates a provider targeting the given Ollama instance. The
// per-attempt deadline comes from the caller's context.
func NewOllama(name, baseURL string, models Models) *Ollama {
	if name == "" {
		name = "ollama"
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		models:  models,
		client:  &http.Client{},
	}
}

func (o *Ollama) Name() string { return o.name }

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

// Complete sends the call to Ollama and returns the assistant's response.
func (o *Ollama) Complete(ctx context.Context, call Call) (string, error) {
	req := chatRequest{
		Model:    o.models.For(call.Depth),
		Messages: call.Messages(),
		Stream:   false,
	}
	if call.Temperature > 0 || call.MaxTokens > 0 {
		req.Options = &ollamaOptions{Temperature: call.Temperature, NumPredict: call.MaxTokens}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", classifyTransport(o.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", classifyStatus(o.name, resp.StatusCode, resp.Header, respBody)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ProviderError{Provider: o.name, Kind: ServerError, Err: fmt.Errorf("decode chat response: %w", err)}
	}
	if result.Error != "" {
		return "", &ProviderError{Provider: o.name, Kind: ServerError, Err: fmt.Errorf("ollama: %s", result.Error)}
	}
	if strings.TrimSpace(result.Message.Content) == "" {
		return "", &ProviderError{Provider: o.name, Kind: ServerError, Err: fmt.Errorf("empty response from model %s", req.Model)}
	}
	return result.Message.Content, nil
}
