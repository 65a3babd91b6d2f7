// Package extract turns document text into a structured financial Record by
// asking an LLM to fill a fixed JSON schema.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/fingraph/llm"
)

var (
	// ErrRateLimited means the inference service rejected the request for
	// exceeding its rate limit.
	ErrRateLimited = errors.New("extract: rate limited")

	// ErrMalformedResponse means the response held no decodable JSON object
	// of the expected shape.
	ErrMalformedResponse = errors.New("extract: malformed response")

	// ErrTransport covers network failures and non rate-limit API errors.
	ErrTransport = errors.New("extract: transport error")

	// ErrEmptyRecord means the response decoded but carried nothing.
	ErrEmptyRecord = errors.New("extract: empty record")
)

// Reason maps an extraction error to a short label for logs and the ledger.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrEmptyRecord):
		return "empty_record"
	default:
		return "error"
	}
}

// Extractor sends one chat request per document. It never retries.
type Extractor struct {
	provider  llm.Provider
	model     string
	maxTokens int
}

// New creates an Extractor. An empty model defers to the provider's default.
func New(provider llm.Provider, model string) *Extractor {
	return &Extractor{provider: provider, model: model}
}

// WithMaxTokens caps the completion length. Zero leaves it to the provider.
func (e *Extractor) WithMaxTokens(n int) *Extractor {
	e.maxTokens = n
	return e
}

// Extract returns the record for text, or an error wrapping one of
// ErrRateLimited, ErrMalformedResponse, ErrTransport or ErrEmptyRecord.
func (e *Extractor) Extract(ctx context.Context, text string) (*Record, error) {
	start := time.Now()

	resp, err := e.provider.Chat(ctx, llm.ChatRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(text)},
		},
		Temperature:    0,
		MaxTokens:      e.maxTokens,
		ResponseFormat: "json_object",
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("extract: %w", ctxErr)
		}
		if llm.IsRateLimit(err) {
			slog.Warn("extract: rate limit hit, consider increasing the delay between documents",
				"error", err)
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		if errors.Is(err, llm.ErrMalformedResponse) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	raw, err := extractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	rec, err := Decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if rec.IsEmpty() {
		return nil, ErrEmptyRecord
	}

	slog.Debug("extract: record decoded",
		"clients", len(rec.Clients),
		"dependants", len(rec.Dependants),
		"tokens", resp.TotalTokens,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return rec, nil
}
