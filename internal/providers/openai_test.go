package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lllllllleong/coursecreator/internal/llm"
)

func chatResponse(content string) string {
	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestOpenAIComplete_Success(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatResponse(`{"sourceAnalysis": {}}`)))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	got, err := client.Requester("You are a course designer.")(context.Background(), "Analyze this.")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"sourceAnalysis": {}}` {
		t.Fatalf("Complete() = %q", got)
	}
	if model, _ := payload["model"].(string); model != openAIDefaultModel {
		t.Fatalf("expected model %s, got %q", openAIDefaultModel, model)
	}
	messages, _ := payload["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", payload["messages"])
	}
}

func TestOpenAIComplete_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "", "hi")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Complete() error = %v, want ErrRateLimited", err)
	}
}

func TestOpenAIComplete_EmptyChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatResponse("  ")))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "", "hi")
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("Complete() error = %v, want ErrEmptyResponse", err)
	}
}
