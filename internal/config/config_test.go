package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 10*time.Minute, cfg.EasyClueAfter)
	assert.Equal(t, 15*time.Minute, cfg.MapLinkAfter)
	assert.Equal(t, 720*time.Hour, cfg.SoftDeleteTTL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "duck-hunt-photos", cfg.MinioBucket)
	assert.False(t, cfg.PhotosEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("HINT_EASY_CLUE_AFTER", "5m")
	t.Setenv("HINT_MAP_LINK_AFTER", "8m")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.EasyClueAfter)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.PhotosEnabled())
}

func TestParse_DifficultyModels(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("DIFFICULTY_MODELS", "claude-3-haiku-20240307,,claude-3-5-sonnet-20241022")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, map[game.Difficulty]string{
		game.DifficultyFriendly: "claude-3-haiku-20240307",
		game.DifficultyStern:    "claude-3-5-sonnet-20241022",
	}, cfg.ModelsByDifficulty())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing anthropic key", func(c *Config) { c.AnthropicAPIKey = "" }, "ANTHROPIC_API_KEY"},
		{"venice without key", func(c *Config) { c.LLMProvider = "venice" }, "VENICE_API_KEY"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "ollama" }, "unsupported LLM_PROVIDER"},
		{"hint order", func(c *Config) { c.MapLinkAfter = time.Minute }, "hint thresholds"},
		{"no workers", func(c *Config) { c.WorkerCount = 0 }, "WORKER_COUNT"},
		{"too many difficulty models", func(c *Config) { c.DifficultyModels = []string{"a", "b", "c", "d"} }, "DIFFICULTY_MODELS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LLMProvider:     "anthropic",
				AnthropicAPIKey: "sk",
				PrimaryModel:    "m",
				EasyClueAfter:   10 * time.Minute,
				MapLinkAfter:    15 * time.Minute,
				WorkerCount:     1,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
