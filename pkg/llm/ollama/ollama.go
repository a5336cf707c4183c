// Package ollama implements pkg/llm's Generator against Ollama's chat API.
package ollama

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
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is the default chat model.
	DefaultModel = "llama3.2"
)

// Generator wraps Ollama's /api/chat endpoint.
type Generator struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama generator.
type Config struct {
	// BaseURL is the Ollama server URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model defaults to DefaultModel if empty.
	Model string

	// Timeout bounds each generation request. Defaults to 120s if zero.
	Timeout time.Duration
}

// NewGenerator creates a new generator using Ollama's chat API.
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
		Stream: false,
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		body.Options = &chatOptions{}
		if req.Temperature > 0 {
			body.Options.Temperature = &req.Temperature
		}
		if req.MaxTokens > 0 {
			body.Options.NumPredict = &req.MaxTokens
		}
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
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", llm.Transient(fmt.Errorf("%w: sending request: %v", llm.ErrGeneration, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return "", llm.Transient(fmt.Errorf("%w: ollama returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", llm.ErrGeneration, err)
	}

	text := strings.TrimSpace(chatResp.Message.Content)
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
