package prompts

import (
	"fmt"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

// Builder constructs the system prompt and turns for a level guide using a fluent interface.
type Builder struct {
	level        *game.Level
	difficulty   game.Difficulty
	history      []game.Message
	userMessage  string
	historyLimit int
}

// Prompt is a built request ready for an inference provider.
type Prompt struct {
	System string
	Turns  []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: 20,
	}
}

// WithLevel sets the level whose persona answers.
func (b *Builder) WithLevel(level *game.Level) *Builder {
	b.level = level
	return b
}

// WithDifficulty sets the manner of the persona. Friendly is the default.
func (b *Builder) WithDifficulty(d game.Difficulty) *Builder {
	b.difficulty = d
	return b
}

// WithHistory sets the prior conversation for the (user, level) pair, oldest first.
func (b *Builder) WithHistory(history []game.Message) *Builder {
	b.history = history
	return b
}

// WithUserMessage sets the new player message.
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// WithHistoryLimit sets the chat history window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build returns the system prompt and the turns, which always start and end on a user turn.
func (b *Builder) Build() (*Prompt, error) {
	if b.level == nil {
		return nil, fmt.Errorf("level is required")
	}
	if b.userMessage == "" {
		return nil, fmt.Errorf("user message is required")
	}

	system := BuildSystemPrompt(
		b.level.Character.Name,
		b.level.Character.SystemPrompt,
		b.level.Clues,
		b.level.Location.Description,
	) + fmt.Sprintf(DifficultySection, DifficultyStyle(b.difficulty))

	turns := windowTurns(ToTurns(b.history), b.historyLimit)
	turns = append(turns, chat.ChatMessage{Role: chat.ChatRoleUser, Content: b.userMessage})

	return &Prompt{System: system + "\n" + UserPostPrompt, Turns: mergeConsecutive(turns)}, nil
}

// BuildPrompt is a convenience function for the common case.
func BuildPrompt(level *game.Level, history []game.Message, message string, historyLimit int) (*Prompt, error) {
	return New().
		WithLevel(level).
		WithHistory(history).
		WithUserMessage(message).
		WithHistoryLimit(historyLimit).
		Build()
}
