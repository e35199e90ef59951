package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

func (r *RedisStorage) GetUser(ctx context.Context, userID string) (*game.User, error) {
	var u game.User
	found, err := r.getJSON(ctx, userKey(userID), &u)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

func (r *RedisStorage) CreateUserIfAbsent(ctx context.Context, user *game.User) (bool, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return false, fmt.Errorf("failed to marshal user: %w", err)
	}
	created, err := r.client.SetNX(ctx, userKey(user.ID), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// AppendCoordinate adds a snapshot to the team's coordinate stream.
func (r *RedisStorage) AppendCoordinate(ctx context.Context, snap *game.CoordinateSnapshot) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: coordinatesKey(snap.TeamID),
		Values: map[string]interface{}{
			"id":         snap.ID,
			"user_id":    snap.UserID,
			"level_id":   snap.LevelID,
			"latitude":   strconv.FormatFloat(snap.Latitude, 'f', -1, 64),
			"longitude":  strconv.FormatFloat(snap.Longitude, 'f', -1, 64),
			"created_at": snap.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append coordinates: %w", err)
	}
	return nil
}

func (r *RedisStorage) CoordinatesForTeam(ctx context.Context, teamID string) ([]game.CoordinateSnapshot, error) {
	entries, err := r.client.XRange(ctx, coordinatesKey(teamID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read coordinates: %w", err)
	}

	out := make([]game.CoordinateSnapshot, 0, len(entries))
	for _, e := range entries {
		str := func(k string) string {
			s, _ := e.Values[k].(string)
			return s
		}
		lat, err := strconv.ParseFloat(str("latitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude in entry %s: %w", e.ID, err)
		}
		lon, err := strconv.ParseFloat(str("longitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude in entry %s: %w", e.ID, err)
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, str("created_at"))
		out = append(out, game.CoordinateSnapshot{
			ID:        str("id"),
			UserID:    str("user_id"),
			TeamID:    teamID,
			LevelID:   str("level_id"),
			Latitude:  lat,
			Longitude: lon,
			CreatedAt: createdAt,
		})
	}
	return out, nil
}

func (r *RedisStorage) CreatePhoto(ctx context.Context, photo *game.Photo) error {
	data, err := json.Marshal(photo)
	if err != nil {
		return fmt.Errorf("failed to marshal photo: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, photoKey(photo.ID), data, 0)
		pipe.ZAdd(ctx, teamPhotosKey(photo.TeamID), redis.Z{
			Score:  float64(photo.CreatedAt.UnixMilli()),
			Member: photo.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save photo: %w", err)
	}
	return nil
}

func (r *RedisStorage) PhotosForTeam(ctx context.Context, teamID string) ([]game.Photo, error) {
	return indexedDocs[game.Photo](ctx, r.client, teamPhotosKey(teamID), photoKey)
}
