// Package engine answers player actions: chatting with a level guide, scanning markers,
// clearing chat and reporting location and photos.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/internal/conversation"
	"github.com/cal-poly-dxhub/duck-hunt/internal/hints"
	"github.com/cal-poly-dxhub/duck-hunt/internal/inference"
	"github.com/cal-poly-dxhub/duck-hunt/internal/metrics"
	"github.com/cal-poly-dxhub/duck-hunt/internal/progress"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/events"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/photos"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

// Responder produces a guide reply for a player message and stores both turns.
type Responder interface {
	Respond(ctx context.Context, req inference.Request) (*game.Message, error)
}

// Caller identifies the player behind a request.
type Caller struct {
	UserID string
	TeamID string
}

// Validate requires both ids to be UUIDs.
func (c Caller) Validate() error {
	if _, err := uuid.Parse(c.UserID); err != nil {
		return apperr.Input("invalid_user_id", "Invalid user id.", err)
	}
	if _, err := uuid.Parse(c.TeamID); err != nil {
		return apperr.Input("invalid_team_id", "Invalid team id.", err)
	}
	return nil
}

type Engine struct {
	store    storage.Storage
	conv     *conversation.Store
	tracker  *progress.Tracker
	pipeline Responder
	policy   hints.Policy
	photos   photos.Store
	events   *events.Broadcaster
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func New(store storage.Storage, conv *conversation.Store, tracker *progress.Tracker, pipeline Responder, policy hints.Policy, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		conv:     conv,
		tracker:  tracker,
		pipeline: pipeline,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithEvents publishes progress events through b.
func (e *Engine) WithEvents(b *events.Broadcaster) *Engine {
	e.events = b
	return e
}

// WithPhotos enables photo uploads.
func (e *Engine) WithPhotos(s photos.Store) *Engine {
	e.photos = s
	return e
}

func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// WithClock replaces the clock used for dwell times and new records.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithRand replaces the source used to pick easy clues.
func (e *Engine) WithRand(rng *rand.Rand) *Engine {
	e.rng = rng
	return e
}

// base is the data every action starts from.
type base struct {
	team *game.Team
	user *game.User
	pos  progress.Position
	// level is the current level, or the final level once the game is complete.
	level *game.Level
}

func (b *base) levelID() string {
	if b.pos.AllCompleted {
		return b.pos.Last.LevelID
	}
	return b.pos.Current.LevelID
}

func (e *Engine) resolve(ctx context.Context, caller Caller) (*base, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	b := &base{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		team, err := e.store.GetTeam(gctx, caller.TeamID)
		if err != nil {
			return apperr.Upstream("storage_read_failed", err)
		}
		if team == nil {
			return apperr.Setup("team_not_found", fmt.Errorf("team %s", caller.TeamID))
		}
		b.team = team
		return nil
	})
	g.Go(func() error {
		pos, err := e.tracker.CurrentLevel(gctx, caller.TeamID)
		if err != nil {
			return tag("storage_read_failed", err)
		}
		b.pos = pos
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	user, err := e.ensureUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	b.user = user

	if b.level, err = e.loadLevel(ctx, b.levelID()); err != nil {
		return nil, err
	}
	return b, nil
}

// ensureUser creates the user on first contact. A user stays bound to the team it was first seen with.
func (e *Engine) ensureUser(ctx context.Context, caller Caller) (*game.User, error) {
	user := &game.User{ID: caller.UserID, TeamID: caller.TeamID, CreatedAt: e.now().UTC()}
	created, err := e.store.CreateUserIfAbsent(ctx, user)
	if err != nil {
		return nil, apperr.Upstream("storage_write_failed", err)
	}
	if created {
		e.logger.Info("User created", "user_id", user.ID, "team_id", user.TeamID)
		return user, nil
	}

	existing, err := e.store.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.Upstream("storage_read_failed", err)
	}
	if existing == nil {
		return user, nil
	}
	if existing.TeamID != caller.TeamID {
		return nil, apperr.Input("user_team_mismatch", "This player belongs to a different team.",
			fmt.Errorf("user %s is on team %s", existing.ID, existing.TeamID))
	}
	return existing, nil
}

func (e *Engine) loadLevel(ctx context.Context, levelID string) (*game.Level, error) {
	level, err := e.store.GetLevel(ctx, levelID)
	if err != nil {
		return nil, apperr.Upstream("storage_read_failed", err)
	}
	if level == nil {
		return nil, apperr.Setup("level_not_found", fmt.Errorf("level %s", levelID))
	}
	return level, nil
}

// history loads the caller's live messages at the current level and trims unanswered user turns.
func (e *Engine) history(ctx context.Context, b *base) ([]game.Message, error) {
	history, err := e.conv.HistoryForUserAtLevel(ctx, b.user.ID, b.level.ID)
	if err != nil {
		return nil, apperr.Upstream("storage_read_failed", err)
	}
	history, err = e.conv.RepairDanglingTurns(ctx, history)
	if err != nil {
		return nil, apperr.Upstream("storage_write_failed", err)
	}
	return history, nil
}

// tier reads the team clock. A failed read counts as no time spent.
func (e *Engine) tier(ctx context.Context, b *base) hints.Tier {
	first, err := e.conv.FirstMessageForTeamAtLevel(ctx, b.team.ID, b.level.ID)
	if err != nil {
		e.logger.Warn("Failed to read team dwell anchor", "team_id", b.team.ID, "level_id", b.level.ID, "error", err)
		first = nil
	}
	return e.policy.TierFor(hints.Elapsed(first, e.now()))
}

func (e *Engine) hint(tier hints.Tier, level *game.Level) (hints.Hint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.Reply(tier, level, e.rng)
}

// tag keeps tagged errors and marks anything else as an upstream failure.
func tag(code string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Upstream(code, err)
}

func writeErr(err error) error {
	if apperr.KindOf(err) == apperr.KindInput {
		return err
	}
	return apperr.Upstream("storage_write_failed", err)
}

var errPhotosDisabled = errors.New("photo storage is not configured")
