package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
)

const DefaultGeminiTemperature float32 = 0.7

// GeminiService implements LLMService on the Gemini API.
type GeminiService struct {
	client *genai.Client
	logger *slog.Logger
}

func NewGeminiService(ctx context.Context, apiKey string, logger *slog.Logger) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiService{client: client, logger: logger}, nil
}

func (g *GeminiService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (g *GeminiService) Complete(ctx context.Context, cr CompletionRequest) (string, error) {
	contents := toGeminiContents(cr.Turns)
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(DefaultGeminiTemperature),
	}
	if cr.System != "" {
		config.SystemInstruction = genai.NewContentFromText(cr.System, genai.RoleUser)
	}
	if cr.MaxTokens > 0 {
		config.MaxOutputTokens = int32(cr.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, cr.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	g.logger.Debug("Gemini completion", "model", cr.Model)
	return text, nil
}

// toGeminiContents maps chat turns to Gemini roles. System turns are folded in as user text.
func toGeminiContents(turns []chat.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == chat.ChatRoleAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}
