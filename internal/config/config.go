package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

type Config struct {
	ServiceName string     `env:"SERVICE_NAME" envDefault:"duck-hunt"`
	Port        string     `env:"PORT" envDefault:"8080"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	LLMProvider     string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	PrimaryModel    string `env:"PRIMARY_MODEL" envDefault:"claude-3-5-haiku-20241022"`
	SecondaryModel  string `env:"SECONDARY_MODEL" envDefault:"claude-3-haiku-20240307"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	VeniceAPIKey    string `env:"VENICE_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	HistoryLimit    int    `env:"HISTORY_LIMIT" envDefault:"20"`
	// DifficultyModels lists the primary model per team difficulty, friendly first.
	// Empty entries keep PRIMARY_MODEL.
	DifficultyModels []string `env:"DIFFICULTY_MODELS" envSeparator:","`

	EasyClueAfter  time.Duration `env:"HINT_EASY_CLUE_AFTER" envDefault:"10m"`
	MapLinkAfter   time.Duration `env:"HINT_MAP_LINK_AFTER" envDefault:"15m"`
	SoftDeleteTTL  time.Duration `env:"SOFT_DELETE_TTL" envDefault:"720h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"duck-hunt-photos"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL"`

	WorkerID    string `env:"WORKER_ID"`
	WorkerCount int    `env:"WORKER_COUNT" envDefault:"2"`
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LLMProvider) {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic"))
		}
	case "venice":
		if c.VeniceAPIKey == "" {
			errs = append(errs, errors.New("VENICE_API_KEY is required when LLM_PROVIDER=venice"))
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.PrimaryModel == "" {
		errs = append(errs, errors.New("PRIMARY_MODEL is required"))
	}
	if len(c.DifficultyModels) > int(game.MaxDifficulty)+1 {
		errs = append(errs, fmt.Errorf("DIFFICULTY_MODELS has %d entries, at most %d difficulties exist",
			len(c.DifficultyModels), int(game.MaxDifficulty)+1))
	}
	if c.EasyClueAfter <= 0 || c.MapLinkAfter < c.EasyClueAfter {
		errs = append(errs, fmt.Errorf("hint thresholds must satisfy 0 < HINT_EASY_CLUE_AFTER (%s) <= HINT_MAP_LINK_AFTER (%s)",
			c.EasyClueAfter, c.MapLinkAfter))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, errors.New("WORKER_COUNT must be at least 1"))
	}
	return errors.Join(errs...)
}

// LLMAPIKey returns the key for the configured provider.
func (c *Config) LLMAPIKey() string {
	switch strings.ToLower(c.LLMProvider) {
	case "venice":
		return c.VeniceAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

// ModelsByDifficulty maps each difficulty to its primary model override.
func (c *Config) ModelsByDifficulty() map[game.Difficulty]string {
	out := make(map[game.Difficulty]string, len(c.DifficultyModels))
	for i, model := range c.DifficultyModels {
		if model = strings.TrimSpace(model); model != "" {
			out[game.Difficulty(i)] = model
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// PhotosEnabled reports whether MinIO is configured.
func (c *Config) PhotosEnabled() bool {
	return c.MinioEndpoint != ""
}
