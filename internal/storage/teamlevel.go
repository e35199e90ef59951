package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

// completeScript sets completed_at only on an existing record that has none.
// Returns -1 for a missing record, 1 when it set the field and 0 otherwise.
var completeScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 0 then
		return -1
	end
	return redis.call("hsetnx", KEYS[1], "completed_at", ARGV[1])
`)

func (r *RedisStorage) TeamLevelsForTeam(ctx context.Context, teamID string) ([]game.TeamLevel, error) {
	levelIDs, err := r.client.ZRange(ctx, teamLevelsKey(teamID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list team levels: %w", err)
	}
	if len(levelIDs) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(levelIDs))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, levelID := range levelIDs {
			cmds[i] = pipe.HGetAll(ctx, teamLevelKey(teamID, levelID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load team levels: %w", err)
	}

	tls := make([]game.TeamLevel, 0, len(cmds))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			r.logger.Warn("Team level index points at missing record", "team_id", teamID, "level_id", levelIDs[i])
			continue
		}
		tl, err := parseTeamLevel(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to parse team level %s: %w", levelIDs[i], err)
		}
		tls = append(tls, tl)
	}
	game.SortTeamLevels(tls)
	return tls, nil
}

func parseTeamLevel(fields map[string]string) (game.TeamLevel, error) {
	index, err := strconv.Atoi(fields["index"])
	if err != nil {
		return game.TeamLevel{}, fmt.Errorf("bad index %q: %w", fields["index"], err)
	}
	tl := game.TeamLevel{
		TeamID:  fields["team_id"],
		LevelID: fields["level_id"],
		Index:   index,
	}
	if raw := fields["completed_at"]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return game.TeamLevel{}, fmt.Errorf("bad completed_at %q: %w", raw, err)
		}
		tl.CompletedAt = &at
	}
	return tl, nil
}

func (r *RedisStorage) CompleteTeamLevel(ctx context.Context, teamID, levelID string, at time.Time) (bool, error) {
	key := teamLevelKey(teamID, levelID)
	res, err := completeScript.Run(ctx, r.client, []string{key}, at.UTC().Format(time.RFC3339Nano)).Int()
	if err != nil {
		r.logger.Error("Failed to complete team level", "team_id", teamID, "level_id", levelID, "error", err)
		return false, fmt.Errorf("failed to complete team level: %w", err)
	}

	switch res {
	case -1:
		return false, storage.ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}
