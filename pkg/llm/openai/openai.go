// Package openai implements pkg/llm's Generator against the OpenAI chat
// completions API (and API-compatible servers).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quillworksco/folio/pkg/llm"
)

const (
	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultModel is the default chat model.
	DefaultModel = "gpt-4o-mini"
)

// Generator wraps the OpenAI chat completions API.
type Generator struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// Config holds configuration for the OpenAI generator.
type Config struct {
	// BaseURL is the API base URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model defaults to DefaultModel if empty.
	Model string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds each generation request. Defaults to 120s if zero.
	Timeout time.Duration
}

// NewGenerator creates a new generator using the OpenAI chat API.
func NewGenerator(cfg Config) (*Generator, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Generator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Generate produces a completion for the request. Transport errors and 5xx
// responses are retried exactly once.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	system := req.System
	if system == "" {
		system = llm.DefaultSystemPrompt
	}

	body := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: llm.UserPrompt(req.Question, req.Context)},
		},
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", llm.ErrGeneration, err)
	}

	text, err := g.generateOnce(ctx, jsonBody)
	if err != nil && llm.IsTransient(err) {
		text, err = g.generateOnce(ctx, jsonBody)
	}
	return text, err
}

func (g *Generator) generateOnce(ctx context.Context, jsonBody []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", llm.Transient(fmt.Errorf("%w: sending request: %v", llm.ErrGeneration, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return "", llm.Transient(fmt.Errorf("%w: openai returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: openai returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", llm.ErrGeneration, err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", llm.ErrGeneration)
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", llm.ErrGeneration)
	}
	return text, nil
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

var _ llm.Generator = (*Generator)(nil)
