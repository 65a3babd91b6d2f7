// Package llm is the client side of the inference service used for entity
// extraction. Every call is a single attempt: callers decide what a failure
// means, the client never retries.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Provider is the interface for LLM interactions.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string        `json:"provider" yaml:"provider"` // groq, openai, openrouter, ollama, lmstudio, anthropic, custom
	Model    string        `json:"model" yaml:"model"`
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	APIKey   string        `json:"api_key" yaml:"api_key"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// ErrMalformedResponse means the service answered successfully but the body
// held no usable completion.
var ErrMalformedResponse = errors.New("llm: malformed response")

// APIError is a non-success response from the inference service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error %d: %s", e.StatusCode, e.Body)
}

// IsRateLimit reports whether err is a rate-limit rejection from any provider.
func IsRateLimit(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return isAnthropicRateLimit(err)
}

// StatusCode extracts the HTTP status of a provider error, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return anthropicStatusCode(err)
}

type providerDefaults struct {
	baseURL string
	model   string
	local   bool
}

// defaults for the OpenAI-compatible providers. Groq is the deployment default.
var defaults = map[string]providerDefaults{
	"groq":       {baseURL: "https://api.groq.com/openai", model: "llama-3.3-70b-versatile"},
	"openai":     {baseURL: "https://api.openai.com", model: "gpt-4o-mini"},
	"openrouter": {baseURL: "https://openrouter.ai/api", model: "meta-llama/llama-3.3-70b-instruct"},
	"ollama":     {baseURL: "http://localhost:11434", model: "llama3.1:8b", local: true},
	"lmstudio":   {baseURL: "http://localhost:1234", local: true},
	"custom":     {local: true},
}

// DefaultModel returns the model a provider uses when none is configured.
func DefaultModel(provider string) string {
	if provider == "anthropic" {
		return defaultAnthropicModel
	}
	return defaults[provider].model
}

// KnownProvider reports whether NewProvider accepts name.
func KnownProvider(name string) bool {
	_, ok := defaults[name]
	return ok || name == "anthropic"
}

// RequiresAPIKey reports whether the provider talks to a hosted service.
func RequiresAPIKey(provider string) bool {
	if provider == "anthropic" {
		return true
	}
	d, ok := defaults[provider]
	return ok && !d.local
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	case "anthropic":
		return NewAnthropic(cfg), nil
	}

	d, ok := defaults[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = d.model
	}
	return &openAICompatProvider{name: cfg.Provider, base: newOpenAICompatClient(cfg)}, nil
}
