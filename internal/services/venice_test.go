package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
)

func TestNewVeniceService(t *testing.T) {
	service := NewVeniceService("test-api-key", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if service.apiKey != "test-api-key" {
		t.Errorf("Expected apiKey test-api-key, got %s", service.apiKey)
	}
	if service.httpClient == nil {
		t.Error("Expected httpClient to be initialized")
	}
}

func TestVeniceService_Complete(t *testing.T) {
	var got VeniceChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Expected bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"1","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Splash!"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	service := NewVeniceService("test-key", slog.New(slog.NewTextHandler(io.Discard, nil)))
	service.baseURL = server.URL

	text, err := service.Complete(context.Background(), CompletionRequest{
		Model:     "m",
		System:    "You are a duck.",
		Turns:     []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Hi"}},
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if text != "Splash!" {
		t.Errorf("Unexpected text %q", text)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != chat.ChatRoleSystem {
		t.Errorf("Expected system message first, got %+v", got.Messages)
	}
	if got.MaxTokens != 64 {
		t.Errorf("Expected max tokens 64, got %d", got.MaxTokens)
	}
}

func TestVeniceService_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	service := NewVeniceService("k", slog.New(slog.NewTextHandler(io.Discard, nil)))
	service.baseURL = server.URL

	_, err := service.Complete(context.Background(), CompletionRequest{Model: "m"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestNewLLMService(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewLLMService(context.Background(), ProviderAnthropic, "k", log); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := NewLLMService(context.Background(), ProviderVenice, "k", log); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := NewLLMService(context.Background(), ProviderGemini, "", log); err == nil {
		t.Error("Expected error for gemini without key")
	}
	if _, err := NewLLMService(context.Background(), "bedrock", "k", log); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
