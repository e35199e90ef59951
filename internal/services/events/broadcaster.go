package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeLevelCompleted EventType = "level.completed"
	EventTypeGameCompleted  EventType = "game.completed"
	EventTypeChatCleared    EventType = "chat.cleared"
	EventTypeGameCreated    EventType = "game.created"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	TeamID    string         `json:"team_id,omitempty"`
	GameID    string         `json:"game_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TeamChannel is the pub/sub channel for a team's progress events
func TeamChannel(teamID string) string { return "team-events:" + teamID }

// GameChannel is the pub/sub channel for game lifecycle events
func GameChannel(gameID string) string { return "game-events:" + gameID }

// Broadcaster publishes events to Redis Pub/Sub so other teammates' clients can refresh.
// A nil *Broadcaster discards events.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
	now         func() time.Time
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
		now:         time.Now,
	}
}

// PublishLevelCompleted publishes a level.completed event
func (b *Broadcaster) PublishLevelCompleted(ctx context.Context, teamID, levelID, nextLevelID string) error {
	return b.publish(ctx, TeamChannel(teamID), Event{
		Type:   EventTypeLevelCompleted,
		TeamID: teamID,
		Data: map[string]any{
			"level_id":      levelID,
			"next_level_id": nextLevelID,
		},
	})
}

// PublishGameCompleted publishes a game.completed event
func (b *Broadcaster) PublishGameCompleted(ctx context.Context, teamID, levelID string) error {
	return b.publish(ctx, TeamChannel(teamID), Event{
		Type:   EventTypeGameCompleted,
		TeamID: teamID,
		Data:   map[string]any{"level_id": levelID},
	})
}

// PublishChatCleared publishes a chat.cleared event
func (b *Broadcaster) PublishChatCleared(ctx context.Context, teamID, userID, levelID string) error {
	return b.publish(ctx, TeamChannel(teamID), Event{
		Type:   EventTypeChatCleared,
		TeamID: teamID,
		Data: map[string]any{
			"user_id":  userID,
			"level_id": levelID,
		},
	})
}

// PublishGameCreated publishes a game.created event
func (b *Broadcaster) PublishGameCreated(ctx context.Context, gameID string, teams int) error {
	return b.publish(ctx, GameChannel(gameID), Event{
		Type:   EventTypeGameCreated,
		GameID: gameID,
		Data:   map[string]any{"game_id": gameID, "teams": teams},
	})
}

func (b *Broadcaster) publish(ctx context.Context, channel string, event Event) error {
	if b == nil || b.redisClient == nil {
		return nil
	}
	event.Timestamp = b.now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)
	return nil
}
