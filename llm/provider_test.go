package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"groq", "*llm.openAICompatProvider"},
		{"openai", "*llm.openAICompatProvider"},
		{"openrouter", "*llm.openAICompatProvider"},
		{"ollama", "*llm.openAICompatProvider"},
		{"lmstudio", "*llm.openAICompatProvider"},
		{"custom", "*llm.openAICompatProvider"},
		{"anthropic", "*llm.anthropicProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			if gotType := fmt.Sprintf("%T", p); gotType != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, gotType, tt.wantType)
			}
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "doesnotexist"})
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
	if want := "unknown llm provider: doesnotexist"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewProviderEmpty(t *testing.T) {
	_, err := NewProvider(Config{})
	if err == nil {
		t.Fatal("expected error for empty provider, got nil")
	}
	if want := "llm provider not specified"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func baseConfig(t *testing.T, p Provider) Config {
	t.Helper()
	v := reflect.ValueOf(p).Elem()
	base := v.FieldByName("base")
	cfg := base.FieldByName("cfg")
	return Config{
		BaseURL: cfg.FieldByName("BaseURL").String(),
		Model:   cfg.FieldByName("Model").String(),
		APIKey:  cfg.FieldByName("APIKey").String(),
	}
}

// TestDefaults verifies that empty BaseURL and Model pick up the provider's
// defaults.
func TestDefaults(t *testing.T) {
	tests := []struct {
		provider  string
		wantURL   string
		wantModel string
	}{
		{"groq", "https://api.groq.com/openai", "llama-3.3-70b-versatile"},
		{"openai", "https://api.openai.com", "gpt-4o-mini"},
		{"openrouter", "https://openrouter.ai/api", "meta-llama/llama-3.3-70b-instruct"},
		{"ollama", "http://localhost:11434", "llama3.1:8b"},
		{"lmstudio", "http://localhost:1234", ""},
		{"custom", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", tt.provider, err)
			}
			got := baseConfig(t, p)
			if got.BaseURL != tt.wantURL {
				t.Errorf("BaseURL = %q, want %q", got.BaseURL, tt.wantURL)
			}
			if got.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", got.Model, tt.wantModel)
			}
			if DefaultModel(tt.provider) != tt.wantModel {
				t.Errorf("DefaultModel(%q) = %q, want %q", tt.provider, DefaultModel(tt.provider), tt.wantModel)
			}
		})
	}
}

func TestExplicitConfigPreserved(t *testing.T) {
	for _, provider := range []string{"groq", "ollama", "openrouter", "custom"} {
		t.Run(provider, func(t *testing.T) {
			p, err := NewProvider(Config{
				Provider: provider,
				Model:    "my-model",
				BaseURL:  "http://my-server:9999",
				APIKey:   "sk-test-key-123",
			})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", provider, err)
			}
			got := baseConfig(t, p)
			if got.BaseURL != "http://my-server:9999" || got.Model != "my-model" || got.APIKey != "sk-test-key-123" {
				t.Errorf("config not preserved: %+v", got)
			}
		})
	}
}

func TestRequiresAPIKey(t *testing.T) {
	tests := map[string]bool{
		"groq":       true,
		"openai":     true,
		"openrouter": true,
		"anthropic":  true,
		"ollama":     false,
		"lmstudio":   false,
		"custom":     false,
		"unknown":    false,
	}
	for provider, want := range tests {
		if got := RequiresAPIKey(provider); got != want {
			t.Errorf("RequiresAPIKey(%q) = %v, want %v", provider, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// OpenAI-compatible wire behaviour
// ---------------------------------------------------------------------------

func TestChatRequestShape(t *testing.T) {
	var captured map[string]any
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"llama-3.3-70b-versatile","choices":[{"message":{"content":"{\"clients\":[]}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`)
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: "groq", BaseURL: srv.URL + "/", APIKey: "gsk_test"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:       []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "doc"}},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if path != "/v1/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer gsk_test" {
		t.Errorf("Authorization = %q", auth)
	}
	if captured["model"] != "llama-3.3-70b-versatile" {
		t.Errorf("model = %v", captured["model"])
	}
	temp, ok := captured["temperature"]
	if !ok || temp != float64(0) {
		t.Errorf("temperature = %v (present=%v), want explicit 0", temp, ok)
	}
	rf, _ := captured["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", captured["response_format"])
	}
	if msgs, _ := captured["messages"].([]any); len(msgs) != 2 {
		t.Errorf("messages = %v", captured["messages"])
	}

	if resp.Content != `{"clients":[]}` || resp.TotalTokens != 14 || resp.FinishReason != "stop" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestChatRateLimitIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"Rate limit reached for tokens per minute"}}`)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{Provider: "groq", BaseURL: srv.URL, APIKey: "k"})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRateLimit(err) {
		t.Errorf("IsRateLimit(%v) = false, want true", err)
	}
	if StatusCode(err) != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", StatusCode(err))
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want exactly 1", n)
	}
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{Provider: "custom", BaseURL: srv.URL})
	_, err := p.Chat(context.Background(), ChatRequest{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if IsRateLimit(err) {
		t.Error("502 must not be reported as a rate limit")
	}
}

func TestChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{Provider: "custom", BaseURL: srv.URL})
	_, err := p.Chat(context.Background(), ChatRequest{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
	if StatusCode(err) != 0 {
		t.Errorf("StatusCode = %d, want 0", StatusCode(err))
	}
}

func TestChatUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway says hi</html>`)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{Provider: "custom", BaseURL: srv.URL})
	_, err := p.Chat(context.Background(), ChatRequest{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestChatTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p, _ := NewProvider(Config{Provider: "custom", BaseURL: url})
	_, err := p.Chat(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if StatusCode(err) != 0 || IsRateLimit(err) {
		t.Errorf("transport error classified as API error: %v", err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Errorf("transport error classified as malformed response: %v", err)
	}
}

func TestIsRateLimitPlainError(t *testing.T) {
	if IsRateLimit(errors.New("boom")) {
		t.Error("plain error reported as rate limit")
	}
	if IsRateLimit(nil) {
		t.Error("nil reported as rate limit")
	}
}
