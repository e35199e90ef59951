package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

// CreateMessage stores msg and indexes it for its user and its team at the level.
// Index scores come from a global sequence so ordering matches creation order exactly.
// Writing an id that already exists is a no-op.
func (r *RedisStorage) CreateMessage(ctx context.Context, msg *game.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	seq, err := r.client.Incr(ctx, messageSeqKey).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate message sequence: %w", err)
	}
	msg.Seq = seq

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	created, err := r.client.SetNX(ctx, messageKey(msg.ID), data, 0).Result()
	if err != nil {
		r.logger.Error("Failed to save message", "message_id", msg.ID, "error", err)
		return fmt.Errorf("failed to save message: %w", err)
	}
	if !created {
		r.logger.Debug("Message already stored", "message_id", msg.ID)
		var existing game.Message
		if _, err := r.getJSON(ctx, messageKey(msg.ID), &existing); err == nil {
			msg.Seq = existing.Seq
		}
		return nil
	}

	score := float64(seq)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, userLevelMessagesKey(msg.UserID, msg.LevelID), redis.Z{Score: score, Member: msg.ID})
		pipe.ZAdd(ctx, teamLevelMessagesKey(msg.TeamID, msg.LevelID), redis.Z{Score: score, Member: msg.ID})
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to index message", "message_id", msg.ID, "error", err)
		return fmt.Errorf("failed to index message: %w", err)
	}
	return nil
}

func (r *RedisStorage) MessagesForUserAtLevel(ctx context.Context, userID, levelID string, includeDeleted bool) ([]game.Message, error) {
	msgs, err := indexedDocs[game.Message](ctx, r.client, userLevelMessagesKey(userID, levelID), messageKey)
	if err != nil {
		return nil, err
	}
	if includeDeleted {
		return msgs, nil
	}
	live := msgs[:0]
	for _, m := range msgs {
		if !m.Deleted() {
			live = append(live, m)
		}
	}
	return live, nil
}

func (r *RedisStorage) FirstMessageForTeamAtLevel(ctx context.Context, teamID, levelID string) (*game.Message, error) {
	msgs, err := indexedDocs[game.Message](ctx, r.client, teamLevelMessagesKey(teamID, levelID), messageKey)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// SoftDeleteMessagesForUserAtLevel stamps deleted_at on live messages and lets them expire after the soft delete TTL.
func (r *RedisStorage) SoftDeleteMessagesForUserAtLevel(ctx context.Context, userID, levelID string, at time.Time) (int, error) {
	live, err := r.MessagesForUserAtLevel(ctx, userID, levelID, false)
	if err != nil {
		return 0, err
	}
	if len(live) == 0 {
		return 0, nil
	}

	deletedAt := at.UTC()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range live {
			live[i].DeletedAt = &deletedAt
			data, err := json.Marshal(live[i])
			if err != nil {
				return fmt.Errorf("failed to marshal message: %w", err)
			}
			pipe.Set(ctx, messageKey(live[i].ID), data, r.softDeleteTTL)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to soft delete messages", "user_id", userID, "level_id", levelID, "error", err)
		return 0, fmt.Errorf("failed to soft delete messages: %w", err)
	}
	return len(live), nil
}

// DeleteMessage removes a message outright. Used only to drop a dangling user turn.
func (r *RedisStorage) DeleteMessage(ctx context.Context, msg *game.Message) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, messageKey(msg.ID))
		pipe.ZRem(ctx, userLevelMessagesKey(msg.UserID, msg.LevelID), msg.ID)
		pipe.ZRem(ctx, teamLevelMessagesKey(msg.TeamID, msg.LevelID), msg.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
