package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

// RedisStorage implements storage.Storage on top of Redis. Records are stored as
// JSON documents; sorted sets act as secondary indexes.
type RedisStorage struct {
	client        *redis.Client
	logger        *slog.Logger
	softDeleteTTL time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage connects to the Redis instance at redisURL (redis://host:port/db).
// Soft-deleted messages expire after softDeleteTTL; zero keeps them forever.
func NewRedisStorage(redisURL string, softDeleteTTL time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStorageFromClient(redis.NewClient(opt), softDeleteTTL, logger), nil
}

// NewRedisStorageFromClient wraps an existing client so it can be shared with the queue and events.
func NewRedisStorageFromClient(client *redis.Client, softDeleteTTL time.Duration, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client:        client,
		logger:        logger,
		softDeleteTTL: softDeleteTTL,
	}
}

// Client returns the underlying Redis client.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Key layout

const messageSeqKey = "seq:message"

func gameKey(id string) string { return "game:" + id }
func gameTeamsKey(id string) string { return "game:" + id + ":teams" }
func levelKey(id string) string { return "level:" + id }
func teamKey(id string) string { return "team:" + id }
func teamLevelsKey(teamID string) string {
	return "team:" + teamID + ":levels"
}
func teamLevelKey(teamID, levelID string) string {
	return "teamlevel:" + teamID + ":" + levelID
}
func messageKey(id string) string { return "message:" + id }
func userLevelMessagesKey(userID, levelID string) string {
	return fmt.Sprintf("user:%s:level:%s:messages", userID, levelID)
}
func teamLevelMessagesKey(teamID, levelID string) string {
	return fmt.Sprintf("team:%s:level:%s:messages", teamID, levelID)
}
func userKey(id string) string { return "user:" + id }
func coordinatesKey(teamID string) string { return "team:" + teamID + ":coordinates" }
func photoKey(id string) string { return "photo:" + id }
func teamPhotosKey(teamID string) string { return "team:" + teamID + ":photos" }

// getJSON loads a JSON document into dst. It reports false when the key does not exist.
func (r *RedisStorage) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// indexedDocs resolves the members of a sorted set index into JSON documents, in score order.
// Members whose document has expired are skipped.
func indexedDocs[T any](ctx context.Context, client *redis.Client, index string, docKey func(string) string) ([]T, error) {
	ids, err := client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
	}
	vals, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load documents for %s: %w", index, err)
	}

	out := make([]T, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var doc T
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		out = append(out, doc)
	}
	return out, nil
}
