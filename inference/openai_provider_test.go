package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// chatStub serves a minimal OpenAI-compatible chat completions endpoint.
func chatStub(t *testing.T, content string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
			t.Errorf("unexpected messages %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  body.Model,
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			},
		})
	}))
}

func TestOpenAIProviderComplete(t *testing.T) {
	server := chatStub(t, "Queues drain at dawn.")
	defer server.Close()

	cfg := DefaultOpenAIProviderConfig()
	cfg.BaseURL = server.URL + "/v1"
	cfg.Model = "local/test-model"

	provider, err := NewOpenAIProvider(cfg)
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}

	text, err := provider.Complete(context.Background(), "Write a haiku about queues.")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "Queues drain at dawn." {
		t.Errorf("Complete() = %q, want %q", text, "Queues drain at dawn.")
	}
	if provider.Model() != "local/test-model" {
		t.Errorf("Model() = %s, want local/test-model", provider.Model())
	}
}

func TestOpenAIProviderRequiresModel(t *testing.T) {
	cfg := DefaultOpenAIProviderConfig()
	if _, err := NewOpenAIProvider(cfg); err == nil {
		t.Fatal("NewOpenAIProvider() without model expected error, got nil")
	}
}

func TestOpenAIProviderRejectsEmptyPrompt(t *testing.T) {
	cfg := DefaultOpenAIProviderConfig()
	cfg.Model = "local/test-model"

	provider, err := NewOpenAIProvider(cfg)
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}
	if _, err := provider.Complete(context.Background(), ""); err == nil {
		t.Fatal("Complete(\"\") expected error, got nil")
	}
}

func TestOpenAIProviderEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	cfg := DefaultOpenAIProviderConfig()
	cfg.BaseURL = server.URL + "/v1"
	cfg.Model = "local/test-model"

	provider, err := NewOpenAIProvider(cfg)
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}
	if _, err := provider.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("Complete() with empty choices expected error, got nil")
	}
}
