package analyzer

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/circuitbreaker"
	infrahttp "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/http"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gemini-2.0-flash-exp"
)

var errEmptyCompletion = errors.New("completion returned no choices")

// OpenAIConfig points at any gateway that speaks the OpenAI chat completions
// protocol.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Configured reports whether enough is set to reach a gateway. A custom base
// URL without a key is valid for keyless proxies.
func (c OpenAIConfig) Configured() bool {
	return c.APIKey != "" || c.BaseURL != ""
}

// OpenAICompleter requests JSON-object completions from /chat/completions.
type OpenAICompleter struct {
	cfg     OpenAIConfig
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewOpenAICompleter builds a completer. breaker may be nil.
func NewOpenAICompleter(cfg OpenAIConfig, client *http.Client, breaker *circuitbreaker.Breaker) *OpenAICompleter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{Name: "openai"})
	}

	return &OpenAICompleter{cfg: cfg, client: client, breaker: breaker}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var headers map[string]string
	if c.cfg.APIKey != "" {
		headers = infrahttp.Bearer(c.cfg.APIKey)
	}

	var resp chatResponse
	err := c.breaker.Execute(ctx, func() error {
		return infrahttp.PostJSON(ctx, c.client, c.cfg.BaseURL+"/chat/completions", headers, req, &resp)
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
