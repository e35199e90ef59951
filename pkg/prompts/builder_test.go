package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

func testLevel() *game.Level {
	return &game.Level{
		ID:   "level-1",
		Name: "Fountain",
		Character: game.Character{
			Name:         "Professor Quack",
			SystemPrompt: "You are a retired physics professor who loves puns.",
		},
		Location:  game.Location{Description: "The fountain outside the library"},
		Clues:     []string{"Water dances here", "Books are nearby", "Coins sleep below"},
		EasyClues: []string{"Near the library", "Listen for splashing"},
		MapLink:   "https://maps.example.com/fountain",
		MaxTokens: 200,
	}
}

func msg(role, content string) game.Message {
	return game.Message{Role: role, Content: content}
}

func TestNew(t *testing.T) {
	builder := New()
	if builder == nil {
		t.Fatal("Expected builder to be created, got nil")
	}
	if builder.historyLimit != 20 {
		t.Errorf("Expected default history limit of 20, got %d", builder.historyLimit)
	}
}

func TestBuilder_Build_RequiresLevel(t *testing.T) {
	_, err := New().WithUserMessage("hi").Build()
	if err == nil || err.Error() != "level is required" {
		t.Errorf("Expected 'level is required' error, got: %v", err)
	}
}

func TestBuilder_Build_RequiresUserMessage(t *testing.T) {
	_, err := New().WithLevel(testLevel()).Build()
	if err == nil || err.Error() != "user message is required" {
		t.Errorf("Expected 'user message is required' error, got: %v", err)
	}
}

func TestBuilder_Build_SystemPrompt(t *testing.T) {
	p, err := BuildPrompt(testLevel(), nil, OpeningLine, 20)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, want := range []string{
		"You are Professor Quack",
		"retired physics professor",
		"1. Water dances here",
		"3. Coins sleep below",
		"The fountain outside the library",
		"NEVER name or directly reveal the secret location",
		UserPostPrompt,
	} {
		if !strings.Contains(p.System, want) {
			t.Errorf("Expected system prompt to contain %q", want)
		}
	}
	if strings.Contains(p.System, "Near the library") {
		t.Error("Easy clues should not be in the system prompt")
	}

	if len(p.Turns) != 1 {
		t.Fatalf("Expected 1 turn, got %d", len(p.Turns))
	}
	if p.Turns[0].Role != chat.ChatRoleUser || p.Turns[0].Content != OpeningLine {
		t.Errorf("Unexpected turn: %+v", p.Turns[0])
	}
}

func TestBuilder_Build_Difficulty(t *testing.T) {
	tests := []struct {
		name       string
		difficulty game.Difficulty
		want       string
	}{
		{"default is friendly", game.DifficultyFriendly, "Be warm, encouraging"},
		{"riddler", game.DifficultyRiddler, "Speak in riddles"},
		{"stern", game.DifficultyStern, "short, cryptic statements"},
		{"unknown falls back to friendly", game.Difficulty(9), "Be warm, encouraging"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New().WithLevel(testLevel()).WithDifficulty(tt.difficulty).WithUserMessage("hi").Build()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !strings.Contains(p.System, tt.want) {
				t.Errorf("Expected system prompt to contain %q", tt.want)
			}
			// every difficulty keeps the never-reveal rule
			if !strings.Contains(p.System, "NEVER name or directly reveal the secret location") {
				t.Error("Expected the never-reveal rule")
			}
		})
	}
}

func TestBuilder_Build_History(t *testing.T) {
	deletedAt := time.Now()
	history := []game.Message{
		{Role: game.RoleUser, Content: "old", DeletedAt: &deletedAt},
		msg(game.RoleUser, "who are you?"),
		msg(game.RoleAssistant, "A professor!"),
		msg(game.RoleUser, "where is the duck?"),
		msg(game.RoleAssistant, "Where water dances."),
	}

	p, err := BuildPrompt(testLevel(), history, "by the gym?", 20)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []string{"who are you?", "A professor!", "where is the duck?", "Where water dances.", "by the gym?"}
	if len(p.Turns) != len(want) {
		t.Fatalf("Expected %d turns, got %d", len(want), len(p.Turns))
	}
	for i, w := range want {
		if p.Turns[i].Content != w {
			t.Errorf("Turn %d: expected %q, got %q", i, w, p.Turns[i].Content)
		}
	}
	if p.Turns[len(p.Turns)-1].Role != chat.ChatRoleUser {
		t.Error("Expected last turn to be the user")
	}
}

func TestBuilder_Build_WindowStartsOnUser(t *testing.T) {
	history := []game.Message{
		msg(game.RoleUser, "1"),
		msg(game.RoleAssistant, "2"),
		msg(game.RoleUser, "3"),
		msg(game.RoleAssistant, "4"),
	}

	// a window of 3 would open on an assistant turn
	p, err := BuildPrompt(testLevel(), history, "5", 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Turns[0].Role != chat.ChatRoleUser || p.Turns[0].Content != "3" {
		t.Errorf("Expected window to open on user turn '3', got %+v", p.Turns[0])
	}
	if len(p.Turns) != 3 {
		t.Errorf("Expected 3 turns, got %d", len(p.Turns))
	}
}

func TestBuilder_Build_MergesDanglingUserTurn(t *testing.T) {
	history := []game.Message{
		msg(game.RoleUser, "hi"),
		msg(game.RoleAssistant, "hello"),
		msg(game.RoleUser, "teammate question"),
	}

	p, err := BuildPrompt(testLevel(), history, "my question", 20)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(p.Turns) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(p.Turns))
	}
	if p.Turns[2].Content != "teammate question\n\nmy question" {
		t.Errorf("Unexpected merged content: %q", p.Turns[2].Content)
	}
}

func TestBuildSystemPrompt_Optional(t *testing.T) {
	s := BuildSystemPrompt("Duck", "A duck.", nil, "")
	if strings.Contains(s, "Clues you may share") || strings.Contains(s, "secret location (never") {
		t.Error("Expected no clue or location sections")
	}
}
