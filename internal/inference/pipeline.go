// Package inference produces a level guide's reply to a player through a chain of fallbacks.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/internal/conversation"
	"github.com/cal-poly-dxhub/duck-hunt/internal/metrics"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/prompts"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/textfilter"
)

// Guardrail is a content-safety service.
type Guardrail interface {
	Check(ctx context.Context, text string, dir textfilter.Direction) (textfilter.Verdict, error)
}

// LevelSource loads level records.
type LevelSource interface {
	GetLevel(ctx context.Context, levelID string) (*game.Level, error)
}

// Stage names the step that produced the final reply.
type Stage string

const (
	StageInputBlocked     Stage = "input_blocked"
	StagePrimary          Stage = "primary"
	StageSecondary        Stage = "secondary"
	StageOutputBlocked    Stage = "output_blocked"
	StageClue             Stage = "clue"
	StageTechDifficulties Stage = "technical_difficulties"
)

type Request struct {
	LevelID    string
	UserID     string
	TeamID     string
	GameID     string
	Message    string
	Difficulty game.Difficulty
}

// Config selects the models and the history window.
type Config struct {
	PrimaryModel   string
	SecondaryModel string
	// DifficultyModels replaces PrimaryModel for teams of the given difficulty.
	DifficultyModels map[game.Difficulty]string
	HistoryLimit     int
}

func (c Config) primaryFor(d game.Difficulty) string {
	if m := c.DifficultyModels[d]; m != "" {
		return m
	}
	return c.PrimaryModel
}

// maxThrottleRetries bounds the retries of a throttled model before falling through.
const maxThrottleRetries = 3

// linearBackoff waits 8s, 16s, 24s between throttled attempts.
func linearBackoff(retry int) time.Duration {
	return time.Duration(retry+1) * 8 * time.Second
}

type Pipeline struct {
	llm     services.LLMService
	guard   Guardrail
	levels  LevelSource
	conv    *conversation.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config

	backoff func(retry int) time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg Config, llm services.LLMService, guard Guardrail, levels LevelSource, conv *conversation.Store, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return &Pipeline{
		llm:     llm,
		guard:   guard,
		levels:  levels,
		conv:    conv,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		backoff: linearBackoff,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithBackoff replaces the wait between retries of a throttled model.
func (p *Pipeline) WithBackoff(fn func(retry int) time.Duration) *Pipeline {
	p.backoff = fn
	return p
}

// WithRand replaces the source used to pick fallback clues.
func (p *Pipeline) WithRand(rng *rand.Rand) *Pipeline {
	p.rng = rng
	return p
}

// Respond stores the player's message and a reply for it. Inference failures never reach the
// caller; only a failed storage write returns an error.
func (p *Pipeline) Respond(ctx context.Context, req Request) (*game.Message, error) {
	logger := p.logger.With("user_id", req.UserID, "team_id", req.TeamID, "level_id", req.LevelID)

	history, err := p.conv.HistoryForUserAtLevel(ctx, req.UserID, req.LevelID)
	if err != nil {
		logger.Warn("Failed to load history, continuing without it", "error", err)
		history = nil
	}

	if _, err := p.conv.Append(ctx, p.entry(req, game.RoleUser, req.Message)); err != nil {
		if apperr.KindOf(err) == apperr.KindInput {
			return nil, err
		}
		return nil, apperr.Upstream("storage_write_failed", err)
	}

	reply, stage := p.reply(ctx, logger, req, history)
	p.metrics.InferenceStage(string(stage))
	logger.Info("Reply produced", "stage", stage)

	msg, err := p.conv.Append(ctx, p.entry(req, game.RoleAssistant, reply))
	if err != nil {
		return nil, apperr.Upstream("storage_write_failed", err)
	}
	return msg, nil
}

func (p *Pipeline) entry(req Request, role, content string) conversation.Entry {
	return conversation.Entry{
		UserID:  req.UserID,
		TeamID:  req.TeamID,
		GameID:  req.GameID,
		LevelID: req.LevelID,
		Role:    role,
		Content: content,
	}
}

func (p *Pipeline) reply(ctx context.Context, logger *slog.Logger, req Request, history []game.Message) (string, Stage) {
	text := req.Message
	verdict, err := p.guard.Check(ctx, text, textfilter.DirectionInput)
	switch {
	case err != nil:
		// the output check still applies
		logger.Warn("Input check failed, continuing unfiltered", "error", err)
	case verdict.Blocked:
		p.metrics.GuardrailBlock(string(textfilter.DirectionInput))
		logger.Info("Input blocked", "reason", verdict.Reason)
		return prompts.RefusalMessage, StageInputBlocked
	case verdict.FilteredText != "":
		text = verdict.FilteredText
	}

	level, err := p.levels.GetLevel(ctx, req.LevelID)
	if err != nil || level == nil {
		logger.Error("Failed to load level for inference", "error", err)
		return prompts.TechDifficultiesMessage, StageTechDifficulties
	}

	prompt, err := prompts.New().
		WithLevel(level).
		WithDifficulty(req.Difficulty).
		WithHistory(history).
		WithUserMessage(text).
		WithHistoryLimit(p.cfg.HistoryLimit).
		Build()
	if err != nil {
		logger.Error("Failed to build prompt", "error", err)
		return prompts.TechDifficultiesMessage, StageTechDifficulties
	}

	for _, attempt := range []struct {
		model string
		stage Stage
	}{
		{p.cfg.primaryFor(req.Difficulty), StagePrimary},
		{p.cfg.SecondaryModel, StageSecondary},
	} {
		out, err := p.complete(ctx, logger, services.CompletionRequest{
			Model:     attempt.model,
			System:    prompt.System,
			Turns:     prompt.Turns,
			MaxTokens: level.MaxTokens,
		})
		if err != nil {
			logger.Warn("Model call failed", "stage", attempt.stage, "model", attempt.model, "error", err)
			continue
		}
		out = strings.TrimSpace(out)
		if out == "" {
			logger.Warn("Model returned no text", "stage", attempt.stage, "model", attempt.model)
			continue
		}
		checked, blocked, err := p.checkOutput(ctx, out)
		if err != nil {
			logger.Warn("Output check failed", "stage", attempt.stage, "error", err)
			continue
		}
		if blocked {
			return prompts.RefusalMessage, StageOutputBlocked
		}
		return checked, attempt.stage
	}

	if clue, ok := p.pickClue(level); ok {
		checked, blocked, err := p.checkOutput(ctx, level.Character.Name+": "+clue)
		if err == nil && !blocked {
			return checked, StageClue
		}
		logger.Warn("Fallback clue rejected", "blocked", blocked, "error", err)
	}

	return prompts.TechDifficultiesMessage, StageTechDifficulties
}

// complete calls the model, retrying the same model while the provider throttles.
func (p *Pipeline) complete(ctx context.Context, logger *slog.Logger, req services.CompletionRequest) (string, error) {
	for retry := 0; ; retry++ {
		out, err := p.llm.Complete(ctx, req)
		var perr *services.ProviderError
		if err == nil || retry >= maxThrottleRetries || !errors.As(err, &perr) || !perr.Throttled() {
			return out, err
		}

		wait := p.backoff(retry)
		logger.Warn("Model throttled, retrying", "model", req.Model, "retry", retry+1, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Pipeline) checkOutput(ctx context.Context, text string) (string, bool, error) {
	verdict, err := p.guard.Check(ctx, text, textfilter.DirectionOutput)
	if err != nil {
		return "", false, fmt.Errorf("output check: %w", err)
	}
	if verdict.Blocked {
		p.metrics.GuardrailBlock(string(textfilter.DirectionOutput))
		return "", true, nil
	}
	if verdict.FilteredText != "" {
		text = verdict.FilteredText
	}
	return text, false, nil
}

// pickClue draws from the easy clues followed by the primary clues.
func (p *Pipeline) pickClue(level *game.Level) (string, bool) {
	pool := append(append([]string(nil), level.EasyClues...), level.Clues...)
	if len(pool) == 0 {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return pool[p.rng.IntN(len(pool))], true
}
