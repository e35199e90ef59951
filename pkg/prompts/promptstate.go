package prompts

import (
	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

// ToTurns converts stored messages to chat turns.
// Deleted messages and unknown roles are skipped.
func ToTurns(history []game.Message) []chat.ChatMessage {
	turns := make([]chat.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Deleted() {
			continue
		}
		switch m.Role {
		case game.RoleUser:
			turns = append(turns, chat.ChatMessage{Role: chat.ChatRoleUser, Content: m.Content})
		case game.RoleAssistant:
			turns = append(turns, chat.ChatMessage{Role: chat.ChatRoleAgent, Content: m.Content})
		}
	}
	return turns
}

// windowTurns keeps at most limit trailing turns, trimmed so the window opens on a user turn.
func windowTurns(turns []chat.ChatMessage, limit int) []chat.ChatMessage {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	for len(turns) > 0 && turns[0].Role != chat.ChatRoleUser {
		turns = turns[1:]
	}
	return turns
}

// mergeConsecutive folds adjacent same-role turns into one.
// Providers reject two user turns in a row, which interleaving teammates can produce.
func mergeConsecutive(turns []chat.ChatMessage) []chat.ChatMessage {
	out := make([]chat.ChatMessage, 0, len(turns))
	for _, t := range turns {
		if n := len(out); n > 0 && out[n-1].Role == t.Role {
			out[n-1].Content += "\n\n" + t.Content
			continue
		}
		out = append(out, t)
	}
	return out
}
