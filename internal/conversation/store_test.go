package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.MockStorage) {
	t.Helper()
	mock := storage.NewMockStorage()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New(mock, logger).WithClock(func() time.Time { return clock })
	return s, mock
}

func entry(role, content string) Entry {
	return Entry{UserID: "u1", TeamID: "t1", GameID: "g1", LevelID: "l1", Role: role, Content: content}
}

func roles(msgs []game.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestAppend_Validation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, entry(game.RoleUser, "   "))
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))

	_, err = s.Append(ctx, entry("system", "hi"))
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))

	msg, err := s.Append(ctx, entry(game.RoleUser, "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), msg.CreatedAt)
	assert.Equal(t, int64(1), msg.Seq)
}

func TestHistory_CreationOrderWithSameTimestamp(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, e := range []Entry{
		entry(game.RoleUser, "one"),
		entry(game.RoleAssistant, "two"),
		entry(game.RoleUser, "three"),
		entry(game.RoleAssistant, "four"),
	} {
		_, err := s.Append(ctx, e)
		require.NoError(t, err)
	}

	history, err := s.HistoryForUserAtLevel(ctx, "u1", "l1")
	require.NoError(t, err)

	var contents []string
	for _, m := range history {
		contents = append(contents, m.Content)
	}
	if diff := cmp.Diff([]string{"one", "two", "three", "four"}, contents); diff != "" {
		t.Errorf("history order mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, Alternates(history))
}

func TestRepairDanglingTurns(t *testing.T) {
	tests := []struct {
		name      string
		seed      []string
		wantRoles []string
		deleted   int
	}{
		{"clean history untouched", []string{game.RoleUser, game.RoleAssistant}, []string{game.RoleUser, game.RoleAssistant}, 0},
		{"single dangling turn", []string{game.RoleUser, game.RoleAssistant, game.RoleUser}, []string{game.RoleUser, game.RoleAssistant}, 1},
		{"two dangling turns", []string{game.RoleUser, game.RoleAssistant, game.RoleUser, game.RoleUser}, []string{game.RoleUser, game.RoleAssistant}, 2},
		{"only a user turn", []string{game.RoleUser}, []string{}, 1},
		{"empty history", nil, []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newTestStore(t)
			ctx := context.Background()
			for i, role := range tt.seed {
				_, err := s.Append(ctx, entry(role, string(rune('a'+i))))
				require.NoError(t, err)
			}

			history, err := s.HistoryForUserAtLevel(ctx, "u1", "l1")
			require.NoError(t, err)

			repaired, err := s.RepairDanglingTurns(ctx, history)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoles, roles(repaired))
			assert.Equal(t, tt.deleted, mock.Calls("DeleteMessage"))

			stored, err := s.HistoryForUserAtLevel(ctx, "u1", "l1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoles, roles(stored))
		})
	}
}

func TestRepairDanglingTurns_DeleteFailure(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()
	_, err := s.Append(ctx, entry(game.RoleUser, "stuck"))
	require.NoError(t, err)
	mock.SetError("DeleteMessage", errors.New("redis down"))

	history, _ := s.HistoryForUserAtLevel(ctx, "u1", "l1")
	_, err = s.RepairDanglingTurns(ctx, history)
	assert.ErrorContains(t, err, "redis down")
}

func TestSoftDelete_KeepsTeamAnchor(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, entry(game.RoleUser, "hi"))
	require.NoError(t, err)
	_, err = s.Append(ctx, entry(game.RoleAssistant, "hello"))
	require.NoError(t, err)

	n, err := s.SoftDeleteAllForUserAtLevel(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	history, err := s.HistoryForUserAtLevel(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.Empty(t, history)

	anchor, err := s.FirstMessageForTeamAtLevel(ctx, "t1", "l1")
	require.NoError(t, err)
	require.NotNil(t, anchor)
	assert.Equal(t, first.ID, anchor.ID)
}

func TestAlternates(t *testing.T) {
	mk := func(roles ...string) []game.Message {
		out := make([]game.Message, len(roles))
		for i, r := range roles {
			out[i] = game.Message{Role: r}
		}
		return out
	}
	assert.True(t, Alternates(nil))
	assert.True(t, Alternates(mk(game.RoleUser, game.RoleAssistant)))
	assert.False(t, Alternates(mk(game.RoleAssistant)))
	assert.False(t, Alternates(mk(game.RoleUser, game.RoleUser, game.RoleAssistant)))
}
