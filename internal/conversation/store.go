// Package conversation keeps the append-only chat log each player has at a level.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

// Entry is a message about to be appended.
type Entry struct {
	UserID  string
	TeamID  string
	GameID  string
	LevelID string
	Role    string
	Content string
}

// Store wraps the message store with id generation, a clock and role alternation repair.
type Store struct {
	messages storage.MessageStore
	logger   *slog.Logger
	now      func() time.Time
}

func New(messages storage.MessageStore, logger *slog.Logger) *Store {
	return &Store{
		messages: messages,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for creation and deletion times.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Append stores a new message. Only empty content and unknown roles are rejected.
func (s *Store) Append(ctx context.Context, e Entry) (*game.Message, error) {
	if strings.TrimSpace(e.Content) == "" {
		return nil, apperr.Input("empty_message", "Message cannot be empty.", nil)
	}
	if !game.ValidRole(e.Role) {
		return nil, apperr.Input("invalid_role", "Invalid message.", fmt.Errorf("role %q", e.Role))
	}

	msg := &game.Message{
		ID:        uuid.NewString(),
		UserID:    e.UserID,
		TeamID:    e.TeamID,
		GameID:    e.GameID,
		LevelID:   e.LevelID,
		Role:      e.Role,
		Content:   e.Content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append %s message: %w", e.Role, err)
	}
	return msg, nil
}

// HistoryForUserAtLevel returns the live messages for the pair in creation order.
func (s *Store) HistoryForUserAtLevel(ctx context.Context, userID, levelID string) ([]game.Message, error) {
	msgs, err := s.messages.MessagesForUserAtLevel(ctx, userID, levelID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return msgs, nil
}

// FirstMessageForTeamAtLevel returns the message that started the team's clock at the level, or nil.
func (s *Store) FirstMessageForTeamAtLevel(ctx context.Context, teamID, levelID string) (*game.Message, error) {
	msg, err := s.messages.FirstMessageForTeamAtLevel(ctx, teamID, levelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load first team message: %w", err)
	}
	return msg, nil
}

// SoftDeleteAllForUserAtLevel marks the user's messages at the level as deleted now.
func (s *Store) SoftDeleteAllForUserAtLevel(ctx context.Context, userID, levelID string) (int, error) {
	n, err := s.messages.SoftDeleteMessagesForUserAtLevel(ctx, userID, levelID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Debug("History soft deleted", "user_id", userID, "level_id", levelID, "count", n)
	return n, nil
}

// RepairDanglingTurns removes unanswered user turns from the tail of history so the
// log ends on an assistant turn before a new user turn is appended.
func (s *Store) RepairDanglingTurns(ctx context.Context, history []game.Message) ([]game.Message, error) {
	for len(history) > 0 && history[len(history)-1].Role == game.RoleUser {
		tail := history[len(history)-1]
		if err := s.messages.DeleteMessage(ctx, &tail); err != nil {
			return history, fmt.Errorf("failed to remove dangling user turn: %w", err)
		}
		s.logger.Info("Removed dangling user turn",
			"message_id", tail.ID,
			"user_id", tail.UserID,
			"level_id", tail.LevelID)
		history = history[:len(history)-1]
	}
	return history, nil
}

// Alternates reports whether history strictly alternates user and assistant turns starting with a user turn.
func Alternates(history []game.Message) bool {
	for i, m := range history {
		want := game.RoleUser
		if i%2 == 1 {
			want = game.RoleAssistant
		}
		if m.Role != want {
			return false
		}
	}
	return true
}
