package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

// SaveGamePlan writes every record of a new game in a single MULTI/EXEC.
func (r *RedisStorage) SaveGamePlan(ctx context.Context, g *game.Game, levels []game.Level, teams []game.Team, assignments []game.TeamLevel) error {
	if g == nil {
		return fmt.Errorf("game cannot be nil")
	}

	docs := make(map[string][]byte, 1+len(levels)+len(teams))
	gameData, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %w", err)
	}
	docs[gameKey(g.ID)] = gameData
	for _, l := range levels {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to marshal level %s: %w", l.ID, err)
		}
		docs[levelKey(l.ID)] = data
	}
	for _, t := range teams {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal team %s: %w", t.ID, err)
		}
		docs[teamKey(t.ID)] = data
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range docs {
			pipe.Set(ctx, key, data, 0)
		}
		for _, t := range teams {
			pipe.SAdd(ctx, gameTeamsKey(g.ID), t.ID)
		}
		for _, tl := range assignments {
			pipe.HSet(ctx, teamLevelKey(tl.TeamID, tl.LevelID),
				"team_id", tl.TeamID,
				"level_id", tl.LevelID,
				"index", tl.Index,
			)
			pipe.ZAdd(ctx, teamLevelsKey(tl.TeamID), redis.Z{Score: float64(tl.Index), Member: tl.LevelID})
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save game plan", "game_id", g.ID, "error", err)
		return fmt.Errorf("failed to save game plan: %w", err)
	}

	r.logger.Info("Game plan saved",
		"game_id", g.ID,
		"levels", len(levels),
		"teams", len(teams),
		"assignments", len(assignments))
	return nil
}

func (r *RedisStorage) GetGame(ctx context.Context, gameID string) (*game.Game, error) {
	var g game.Game
	found, err := r.getJSON(ctx, gameKey(gameID), &g)
	if err != nil || !found {
		return nil, err
	}
	return &g, nil
}

func (r *RedisStorage) GetLevel(ctx context.Context, levelID string) (*game.Level, error) {
	var l game.Level
	found, err := r.getJSON(ctx, levelKey(levelID), &l)
	if err != nil || !found {
		return nil, err
	}
	return &l, nil
}

func (r *RedisStorage) GetTeam(ctx context.Context, teamID string) (*game.Team, error) {
	var t game.Team
	found, err := r.getJSON(ctx, teamKey(teamID), &t)
	if err != nil || !found {
		return nil, err
	}
	return &t, nil
}

func (r *RedisStorage) TeamsForGame(ctx context.Context, gameID string) ([]game.Team, error) {
	ids, err := r.client.SMembers(ctx, gameTeamsKey(gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for game: %w", err)
	}
	teams := make([]game.Team, 0, len(ids))
	for _, id := range ids {
		t, err := r.GetTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			teams = append(teams, *t)
		}
	}
	return teams, nil
}
