package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// CompletionRequest is a single stateless completion.
type CompletionRequest struct {
	Model     string
	System    string
	Turns     []chat.ChatMessage // user/assistant only, starting and ending on user
	MaxTokens int
}

// LLMService defines the interface for interacting with an inference provider
type LLMService interface {
	// InitModel prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// Complete returns the assistant text for the request
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ProviderError is a non-2xx answer from a provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Throttled reports whether the provider rejected the call for rate limiting.
func (e *ProviderError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Provider names accepted by NewLLMService.
const (
	ProviderAnthropic = "anthropic"
	ProviderVenice    = "venice"
	ProviderGemini    = "gemini"
)

// NewLLMService builds the client for provider.
func NewLLMService(ctx context.Context, provider, apiKey string, logger *slog.Logger) (LLMService, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicService(apiKey, logger), nil
	case ProviderVenice:
		return NewVeniceService(apiKey, logger), nil
	case ProviderGemini:
		return NewGeminiService(ctx, apiKey, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
