package queue

import (
	"encoding/json"
	"time"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

// SetupRequest asks a worker to plan and persist a game
type SetupRequest struct {
	RequestID  string          `json:"request_id"`
	Definition game.Definition `json:"definition"`
	// Source is where the definition came from, e.g. a file path
	Source     string    `json:"source,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ToJSON converts the request to JSON bytes for Redis
func (r *SetupRequest) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*SetupRequest, error) {
	var req SetupRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// SetupStatus is the terminal state of a setup request
type SetupStatus string

const (
	SetupSucceeded SetupStatus = "succeeded"
	SetupFailed    SetupStatus = "failed"
)

// TeamAssignment is one team's planned level order
type TeamAssignment struct {
	TeamID   string   `json:"team_id"`
	TeamName string   `json:"team_name"`
	LevelIDs []string `json:"level_ids"`
}

// SetupResult is recorded by the worker once a request is handled
type SetupResult struct {
	RequestID   string           `json:"request_id"`
	Status      SetupStatus      `json:"status"`
	GameID      string           `json:"game_id,omitempty"`
	Teams       []TeamAssignment `json:"teams,omitempty"`
	Error       string           `json:"error,omitempty"`
	WorkerID    string           `json:"worker_id,omitempty"`
	CompletedAt time.Time        `json:"completed_at"`
}
