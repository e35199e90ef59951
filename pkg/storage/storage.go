package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

// ErrNotFound is returned by writes that target a record which does not exist.
// Reads return nil, nil for missing records.
var ErrNotFound = errors.New("record not found")

// GameStore persists the records produced when a game is created.
type GameStore interface {
	// SaveGamePlan writes a game with its levels, teams and team-level assignments in one transaction.
	SaveGamePlan(ctx context.Context, g *game.Game, levels []game.Level, teams []game.Team, assignments []game.TeamLevel) error
	GetGame(ctx context.Context, gameID string) (*game.Game, error)
	GetLevel(ctx context.Context, levelID string) (*game.Level, error)
	GetTeam(ctx context.Context, teamID string) (*game.Team, error)
	TeamsForGame(ctx context.Context, gameID string) ([]game.Team, error)
}

// TeamLevelStore is the source of truth for team progression.
type TeamLevelStore interface {
	// TeamLevelsForTeam returns every assignment of the team sorted by index.
	TeamLevelsForTeam(ctx context.Context, teamID string) ([]game.TeamLevel, error)
	// CompleteTeamLevel sets the completion time unless one is already set.
	// It reports whether this call made the transition and returns ErrNotFound for unknown records.
	CompleteTeamLevel(ctx context.Context, teamID, levelID string, at time.Time) (bool, error)
}

// MessageStore keeps the per user and level conversation logs.
type MessageStore interface {
	// CreateMessage stores a new message and assigns its sequence number.
	CreateMessage(ctx context.Context, msg *game.Message) error
	// MessagesForUserAtLevel returns messages in creation order, skipping soft-deleted ones unless asked.
	MessagesForUserAtLevel(ctx context.Context, userID, levelID string, includeDeleted bool) ([]game.Message, error)
	// FirstMessageForTeamAtLevel returns the earliest message written by any team member, deleted or not.
	FirstMessageForTeamAtLevel(ctx context.Context, teamID, levelID string) (*game.Message, error)
	// SoftDeleteMessagesForUserAtLevel marks live messages deleted and returns how many were marked.
	SoftDeleteMessagesForUserAtLevel(ctx context.Context, userID, levelID string, at time.Time) (int, error)
	// DeleteMessage removes a message and its index entries.
	DeleteMessage(ctx context.Context, msg *game.Message) error
}

type UserStore interface {
	GetUser(ctx context.Context, userID string) (*game.User, error)
	// CreateUserIfAbsent stores the user unless the id exists and reports whether it was created.
	CreateUserIfAbsent(ctx context.Context, user *game.User) (bool, error)
}

// TelemetryStore keeps append-only player evidence.
type TelemetryStore interface {
	AppendCoordinate(ctx context.Context, snap *game.CoordinateSnapshot) error
	CoordinatesForTeam(ctx context.Context, teamID string) ([]game.CoordinateSnapshot, error)
	CreatePhoto(ctx context.Context, photo *game.Photo) error
	PhotosForTeam(ctx context.Context, teamID string) ([]game.Photo, error)
}

// Storage defines a unified interface for all storage operations
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	GameStore
	TeamLevelStore
	MessageStore
	UserStore
	TelemetryStore
}
