package chat

import (
	"fmt"
	"strings"
	"time"
)

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Level guide
	ChatRoleSystem = "system"    // Persona instructions
)

// ChatMessage is a single turn handed to an inference provider.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Status distinguishes successful outcomes of an action.
type Status string

const (
	StatusOK                    Status = "ok"
	StatusLevelAlreadyCompleted Status = "level_already_completed"
	StatusGameCompleted         Status = "game_completed"
)

// MessageRequest is a new chat message from a player.
type MessageRequest struct {
	Message string `json:"message"`
}

func (mr *MessageRequest) Validate() error {
	if strings.TrimSpace(mr.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// LevelRequest refreshes the current level, or scans a marker when LevelID is set.
type LevelRequest struct {
	LevelID string `json:"levelId,omitempty"`
}

// CoordinatesRequest is a location ping from a player's device.
type CoordinatesRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// HistoryMessage is a stored turn as returned to players.
type HistoryMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageResponse answers chat-style actions.
type MessageResponse struct {
	Message string  `json:"message"`
	MapLink *string `json:"mapLink"` // null until the map hint is due
	Status  Status  `json:"status"`
}

// LevelResponse answers level actions.
type LevelResponse struct {
	CurrentLevelID string           `json:"currentLevelId"`
	MessageHistory []HistoryMessage `json:"messageHistory"`
	RequiresPhoto  bool             `json:"requiresPhoto"`
	MapLink        *string          `json:"mapLink"`
	Status         Status           `json:"status"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error          string `json:"error"`
	DisplayMessage string `json:"displayMessage"`
	Details        string `json:"details,omitempty"`
}
