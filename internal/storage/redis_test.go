package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

func setupRedisStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := NewRedisStorage("redis://"+mr.Addr(), time.Hour, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

type fixture struct {
	game   game.Game
	levels []game.Level
	team   game.Team
	tls    []game.TeamLevel
}

func saveFixture(t *testing.T, s *RedisStorage) fixture {
	t.Helper()
	ctx := context.Background()

	f := fixture{game: game.Game{ID: uuid.NewString(), Name: "Spring Hunt", LevelsInGame: 3, CreatedAt: time.Now().UTC()}}
	for _, name := range []string{"Fountain", "Clock Tower", "Finale"} {
		l := game.Level{
			ID:        uuid.NewString(),
			GameID:    f.game.ID,
			Name:      name,
			Character: game.Character{Name: "Quackers", SystemPrompt: "You are Quackers."},
			Location:  game.Location{Description: name, Latitude: 35.3, Longitude: -120.6},
			Clues:     []string{"a", "b", "c"},
			EasyClues: []string{"d", "e"},
			MapLink:   "https://maps.example.com/" + name,
			MaxTokens: 150,
		}
		f.levels = append(f.levels, l)
		f.game.LevelIDs = append(f.game.LevelIDs, l.ID)
	}
	f.team = game.Team{ID: uuid.NewString(), GameID: f.game.ID, Name: "Mallards"}
	// stored out of order on purpose
	for _, i := range []int{2, 0, 1} {
		f.tls = append(f.tls, game.TeamLevel{TeamID: f.team.ID, LevelID: f.levels[i].ID, Index: i})
	}

	require.NoError(t, s.SaveGamePlan(ctx, &f.game, f.levels, []game.Team{f.team}, f.tls))
	return f
}

func TestRedisStorage_SaveGamePlan(t *testing.T) {
	s, _ := setupRedisStorage(t)
	ctx := context.Background()
	f := saveFixture(t, s)

	g, err := s.GetGame(ctx, f.game.ID)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, f.game.LevelIDs, g.LevelIDs)

	l, err := s.GetLevel(ctx, f.levels[1].ID)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, "Clock Tower", l.Name)
	assert.Equal(t, []string{"d", "e"}, l.EasyClues)

	team, err := s.GetTeam(ctx, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mallards", team.Name)

	teams, err := s.TeamsForGame(ctx, f.game.ID)
	require.NoError(t, err)
	assert.Len(t, teams, 1)

	tls, err := s.TeamLevelsForTeam(ctx, f.team.ID)
	require.NoError(t, err)
	require.Len(t, tls, 3)
	for i, tl := range tls {
		assert.Equal(t, i, tl.Index)
		assert.Equal(t, f.levels[i].ID, tl.LevelID)
		assert.False(t, tl.Completed())
	}
}

func TestRedisStorage_MissingRecordsReturnNil(t *testing.T) {
	s, _ := setupRedisStorage(t)
	ctx := context.Background()

	g, err := s.GetGame(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, g)

	l, err := s.GetLevel(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, l)

	tls, err := s.TeamLevelsForTeam(ctx, "nope")
	assert.NoError(t, err)
	assert.Empty(t, tls)

	first, err := s.FirstMessageForTeamAtLevel(ctx, "nope", "nope")
	assert.NoError(t, err)
	assert.Nil(t, first)
}

func TestRedisStorage_CompleteTeamLevel(t *testing.T) {
	s, _ := setupRedisStorage(t)
	ctx := context.Background()
	f := saveFixture(t, s)
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	done, err := s.CompleteTeamLevel(ctx, f.team.ID, f.levels[0].ID, at)
	require.NoError(t, err)
	assert.True(t, done)

	again, err := s.CompleteTeamLevel(ctx, f.team.ID, f.levels[0].ID, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, again, "second completion must not transition")

	tls, err := s.TeamLevelsForTeam(ctx, f.team.ID)
	require.NoError(t, err)
	require.NotNil(t, tls[0].CompletedAt)
	assert.True(t, tls[0].CompletedAt.Equal(at), "first timestamp is kept")

	_, err = s.CompleteTeamLevel(ctx, f.team.ID, uuid.NewString(), at)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func newMessage(userID, teamID, levelID, role, content string) *game.Message {
	return &game.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		TeamID:    teamID,
		GameID:    "g",
		LevelID:   levelID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func TestRedisStorage_MessagesOrderAndTeamAnchor(t *testing.T) {
	s, _ := setupRedisStorage(t)
	ctx := context.Background()

	alice, bob := uuid.NewString(), uuid.NewString()
	team, level := uuid.NewString(), uuid.NewString()

	first := newMessage(bob, team, level, game.RoleUser, "bob starts")
	require.NoError(t, s.CreateMessage(ctx, first))
	for _, m := range []*game.Message{
		newMessage(alice, team, level, game.RoleUser, "hi"),
		newMessage(alice, team, level, game.RoleAssistant, "hello"),
		newMessage(alice, team, level, game.RoleUser, "where?"),
		newMessage(alice, team, level, game.RoleAssistant, "north"),
	} {
		require.NoError(t, s.CreateMessage(ctx, m))
	}

	history, err := s.MessagesForUserAtLevel(ctx, alice, level, false)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, []string{"hi", "hello", "where?", "north"},
		[]string{history[0].Content, history[1].Content, history[2].Content, history[3].Content})
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].Seq, history[i-1].Seq)
	}

	anchor, err := s.FirstMessageForTeamAtLevel(ctx, team, level)
	require.NoError(t, err)
	require.NotNil(t, anchor)
	assert.Equal(t, first.ID, anchor.ID, "the team clock starts at any member's first message")
}

func TestRedisStorage_CreateMessageIsIdempotent(t *testing.T) {
	s, _ := setupRedisStorage(t)
	ctx := context.Background()

	msg := newMessage("u", "t", "l", game.RoleUser, "hi")
	require.NoError(t, s.CreateMessage(ctx, msg))
	firstSeq := msg.Seq

	dup := *msg
	require.NoError(t, s.CreateMessage(ctx, &dup))
	assert.Equal(t, firstSeq, dup.Seq)

	history, err := s.MessagesForUserAtLevel(ctx, "u", "l", true)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRedisStorage_SoftDeleteAndExpiry(t *testing.T) {
	s, mr := setupRedisStorage(t)
	ctx := context.Background()

	user, team, level := uuid.NewString(), uuid.NewString(), uuid.NewString()
	m1 := newMessage(user, team, level, game.RoleUser, "hi")
	m2 := newMessage(user, team, level, game.RoleAssistant, "hello")
	require.NoError(t, s.CreateMessage(ctx, m1))
	require.NoError(t, s.CreateMessage(ctx, m2))

	n, err := s.SoftDeleteMessagesForUserAtLevel(ctx, user, level, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	live, err := s.MessagesForUserAtLevel(ctx, user, level, false)
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := s.MessagesForUserAtLevel(ctx, user, level, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Deleted())

	anchor, err := s.FirstMessageForTeamAtLevel(ctx, team, level)
	require.NoError(t, err)
	require.NotNil(t, anchor, "soft-deleted messages still anchor the team clock")
	assert.Equal(t, m1.ID, anchor.ID)

	n, err = s.SoftDeleteMessagesForUserAtLevel(ctx, user, level, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	mr.FastForward(2 * time.Hour)

	all, err = s.MessagesForUserAtLevel(ctx, user, level, true)
	require.NoError(t, err)
	assert.Empty(t, all, "soft-deleted messages expire after the TTL")
}

func TestRedisStorage_DeleteMessage(t *testing.T) {
	s, _ := setupRedisStorage(t)
	ctx := context.Background()

	msg := newMessage("u", "t", "l", game.RoleUser, "dangling")
	require.NoError(t, s.CreateMessage(ctx, msg))
	require.NoError(t, s.DeleteMessage(ctx, msg))

	history, err := s.MessagesForUserAtLevel(ctx, "u", "l", true)
	require.NoError(t, err)
	assert.Empty(t, history)

	anchor, err := s.FirstMessageForTeamAtLevel(ctx, "t", "l")
	require.NoError(t, err)
	assert.Nil(t, anchor)
}

func TestRedisStorage_Users(t *testing.T) {
	s, _ := setupRedisStorage(t)
	ctx := context.Background()

	u := &game.User{ID: uuid.NewString(), TeamID: "team", CreatedAt: time.Now().UTC()}
	created, err := s.CreateUserIfAbsent(ctx, u)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateUserIfAbsent(ctx, &game.User{ID: u.ID, TeamID: "other"})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "team", got.TeamID)
}

func TestRedisStorage_Telemetry(t *testing.T) {
	s, _ := setupRedisStorage(t)
	ctx := context.Background()

	snap := &game.CoordinateSnapshot{
		ID:        uuid.NewString(),
		UserID:    "u",
		TeamID:    "t",
		LevelID:   "l",
		Latitude:  35.30005,
		Longitude: -120.66,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.AppendCoordinate(ctx, snap))

	coords, err := s.CoordinatesForTeam(ctx, "t")
	require.NoError(t, err)
	require.Len(t, coords, 1)
	assert.Equal(t, snap.ID, coords[0].ID)
	assert.InDelta(t, 35.30005, coords[0].Latitude, 1e-9)
	assert.InDelta(t, -120.66, coords[0].Longitude, 1e-9)

	photo := &game.Photo{ID: uuid.NewString(), TeamID: "t", LevelID: "l", ObjectKey: "teams/t/photos/l/x.jpg", CreatedAt: time.Now()}
	require.NoError(t, s.CreatePhoto(ctx, photo))

	photos, err := s.PhotosForTeam(ctx, "t")
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, photo.ObjectKey, photos[0].ObjectKey)
}
