// Package planner turns a validated game definition into teams, levels and per-team level assignments.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

// Plan is everything a new game writes to the store.
type Plan struct {
	Game   game.Game
	Levels []game.Level
	Teams  []game.Team
	// Assignments maps team id to its levels in play order.
	Assignments map[string][]game.TeamLevel
}

// AllAssignments flattens the assignments in team order.
func (p *Plan) AllAssignments() []game.TeamLevel {
	var out []game.TeamLevel
	for _, t := range p.Teams {
		out = append(out, p.Assignments[t.ID]...)
	}
	return out
}

type Planner struct {
	rng    *rand.Rand
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

// New returns a planner drawing assignments from rng.
func New(rng *rand.Rand, logger *slog.Logger) *Planner {
	return &Planner{
		rng:    rng,
		newID:  uuid.NewString,
		now:    time.Now,
		logger: logger,
	}
}

// Plan validates def and builds the game. The last definition level is the shared final level.
func (p *Planner) Plan(def *game.Definition) (*Plan, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{
		Game: game.Game{
			ID:           p.newID(),
			Name:         def.Name,
			LevelsInGame: def.PlayedLevels(),
			CreatedAt:    p.now().UTC(),
		},
		Assignments: make(map[string][]game.TeamLevel, len(def.Teams)),
	}

	for _, ld := range def.Levels {
		id := ld.ID
		if id == "" {
			id = p.newID()
		}
		plan.Levels = append(plan.Levels, game.Level{
			ID:        id,
			GameID:    plan.Game.ID,
			Name:      ld.Name,
			Character: game.Character{Name: ld.Character.Name, SystemPrompt: ld.Character.Prompt},
			Location: game.Location{
				Description: ld.Location.Description,
				Latitude:    *ld.Location.Latitude,
				Longitude:   *ld.Location.Longitude,
			},
			Clues:     append([]string(nil), ld.Clues...),
			EasyClues: append([]string(nil), ld.EasyClues...),
			MapLink:   ld.MapLink,
			MaxTokens: ld.MaxTokens,
		})
		plan.Game.LevelIDs = append(plan.Game.LevelIDs, id)
	}

	for _, td := range def.Teams {
		team := game.Team{
			ID:         p.newID(),
			GameID:     plan.Game.ID,
			Name:       td.Name,
			Difficulty: game.Difficulty(td.Difficulty),
		}
		plan.Teams = append(plan.Teams, team)

		levelIDs := AssignLevels(p.rng, plan.Game.LevelIDs, plan.Game.LevelsInGame)
		tls := make([]game.TeamLevel, len(levelIDs))
		for i, levelID := range levelIDs {
			tls[i] = game.TeamLevel{TeamID: team.ID, LevelID: levelID, Index: i}
		}
		plan.Assignments[team.ID] = tls
	}

	p.logger.Info("Game planned",
		"game_id", plan.Game.ID,
		"teams", len(plan.Teams),
		"levels", len(plan.Levels),
		"levels_in_game", plan.Game.LevelsInGame)
	return plan, nil
}

// AssignLevels picks a team's levels. With count equal to the number of levels the
// definition order is kept; otherwise count-1 non-final levels are sampled without
// replacement and the final level is appended.
func AssignLevels(rng *rand.Rand, levelIDs []string, count int) []string {
	if len(levelIDs) == 0 || count <= 0 {
		return nil
	}
	if count >= len(levelIDs) {
		return append([]string(nil), levelIDs...)
	}

	final := levelIDs[len(levelIDs)-1]
	pool := levelIDs[:len(levelIDs)-1]
	out := make([]string, 0, count)
	for _, i := range rng.Perm(len(pool))[:count-1] {
		out = append(out, pool[i])
	}
	return append(out, final)
}

// Persist writes the plan in a single transaction.
func Persist(ctx context.Context, store storage.GameStore, plan *Plan) error {
	if err := store.SaveGamePlan(ctx, &plan.Game, plan.Levels, plan.Teams, plan.AllAssignments()); err != nil {
		return fmt.Errorf("failed to persist game %s: %w", plan.Game.ID, err)
	}
	return nil
}
