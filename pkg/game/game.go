// Package game holds the duck hunt domain records shared by the engine, the store and the tools.
package game

import (
	"cmp"
	"slices"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role may be stored on a Message.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// Game is created once from a definition and never mutated.
type Game struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	LevelIDs     []string  `json:"level_ids"`
	LevelsInGame int       `json:"levels_in_game"`
	CreatedAt    time.Time `json:"created_at"`
}

// FinalLevelID is the level every team plays last.
func (g *Game) FinalLevelID() string {
	if len(g.LevelIDs) == 0 {
		return ""
	}
	return g.LevelIDs[len(g.LevelIDs)-1]
}

type Character struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
}

type Location struct {
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Level is a physical stop on the hunt, guarded by an in-character guide.
type Level struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	Name      string    `json:"name"`
	Character Character `json:"character"`
	Location  Location  `json:"location"`
	Clues     []string  `json:"clues"`
	EasyClues []string  `json:"easy_clues"`
	MapLink   string    `json:"map_link"`
	MaxTokens int       `json:"max_tokens"`
}

type Team struct {
	ID         string     `json:"id"`
	GameID     string     `json:"game_id"`
	Name       string     `json:"name"`
	Difficulty Difficulty `json:"difficulty"`
}

// Difficulty sets how a team's guides talk. No guide ever reveals the location.
type Difficulty int

const (
	DifficultyFriendly Difficulty = iota
	DifficultyRiddler
	DifficultyStern
)

// MaxDifficulty is the hardest supported difficulty.
const MaxDifficulty = DifficultyStern

func (d Difficulty) String() string {
	switch d {
	case DifficultyFriendly:
		return "friendly"
	case DifficultyRiddler:
		return "riddler"
	case DifficultyStern:
		return "stern"
	default:
		return "unknown"
	}
}

// TeamLevel is a team's progress record for one assigned level.
type TeamLevel struct {
	TeamID      string     `json:"team_id"`
	LevelID     string     `json:"level_id"`
	Index       int        `json:"index"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (tl TeamLevel) Completed() bool {
	return tl.CompletedAt != nil
}

// CompareTeamLevels orders records by assignment index. The lowest index wins;
// equal indexes fall back to level id so the order is total.
func CompareTeamLevels(a, b TeamLevel) int {
	if c := cmp.Compare(a.Index, b.Index); c != 0 {
		return c
	}
	return cmp.Compare(a.LevelID, b.LevelID)
}

// SortTeamLevels sorts records in play order.
func SortTeamLevels(tls []TeamLevel) {
	slices.SortFunc(tls, CompareTeamLevels)
}

type Message struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TeamID    string     `json:"team_id"`
	GameID    string     `json:"game_id"`
	LevelID   string     `json:"level_id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	Seq       int64      `json:"seq"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

type User struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CoordinateSnapshot struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TeamID    string    `json:"team_id"`
	LevelID   string    `json:"level_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}

type Photo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TeamID      string    `json:"team_id"`
	LevelID     string    `json:"level_id"`
	ObjectKey   string    `json:"object_key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
