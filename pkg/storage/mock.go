package storage

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
)

// MockStorage is an in-memory implementation of Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	games      map[string]game.Game
	levels     map[string]game.Level
	teams      map[string]game.Team
	teamLevels map[string]map[string]game.TeamLevel // team -> level -> record
	messages   []game.Message
	users      map[string]game.User
	coords     []game.CoordinateSnapshot
	photos     []game.Photo
	seq        int64
	pingError  error
	errs       map[string]error
	calls      map[string]int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		games:      make(map[string]game.Game),
		levels:     make(map[string]game.Level),
		teams:      make(map[string]game.Team),
		teamLevels: make(map[string]map[string]game.TeamLevel),
		users:      make(map[string]game.User),
		errs:       make(map[string]error),
		calls:      make(map[string]int),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetError makes the named method fail with err. A nil err clears the failure.
func (m *MockStorage) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// Calls returns how many times the named method was invoked.
func (m *MockStorage) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// track records a call and returns the configured failure. Caller holds the lock.
func (m *MockStorage) track(method string) error {
	m.calls[method]++
	return m.errs[method]
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveGamePlan(ctx context.Context, g *game.Game, levels []game.Level, teams []game.Team, assignments []game.TeamLevel) error {
	if g == nil {
		return errors.New("game cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("SaveGamePlan"); err != nil {
		return err
	}
	m.games[g.ID] = *g
	for _, l := range levels {
		m.levels[l.ID] = l
	}
	for _, t := range teams {
		m.teams[t.ID] = t
	}
	for _, tl := range assignments {
		if m.teamLevels[tl.TeamID] == nil {
			m.teamLevels[tl.TeamID] = make(map[string]game.TeamLevel)
		}
		m.teamLevels[tl.TeamID][tl.LevelID] = tl
	}
	return nil
}

func (m *MockStorage) GetGame(ctx context.Context, gameID string) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("GetGame"); err != nil {
		return nil, err
	}
	g, ok := m.games[gameID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *MockStorage) GetLevel(ctx context.Context, levelID string) (*game.Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("GetLevel"); err != nil {
		return nil, err
	}
	l, ok := m.levels[levelID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *MockStorage) GetTeam(ctx context.Context, teamID string) (*game.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("GetTeam"); err != nil {
		return nil, err
	}
	t, ok := m.teams[teamID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MockStorage) TeamsForGame(ctx context.Context, gameID string) ([]game.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("TeamsForGame"); err != nil {
		return nil, err
	}
	var teams []game.Team
	for _, t := range m.teams {
		if t.GameID == gameID {
			teams = append(teams, t)
		}
	}
	slices.SortFunc(teams, func(a, b game.Team) int { return cmp.Compare(a.ID, b.ID) })
	return teams, nil
}

func (m *MockStorage) TeamLevelsForTeam(ctx context.Context, teamID string) ([]game.TeamLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("TeamLevelsForTeam"); err != nil {
		return nil, err
	}
	tls := make([]game.TeamLevel, 0, len(m.teamLevels[teamID]))
	for _, tl := range m.teamLevels[teamID] {
		tls = append(tls, tl)
	}
	game.SortTeamLevels(tls)
	return tls, nil
}

func (m *MockStorage) CompleteTeamLevel(ctx context.Context, teamID, levelID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("CompleteTeamLevel"); err != nil {
		return false, err
	}
	tl, ok := m.teamLevels[teamID][levelID]
	if !ok {
		return false, ErrNotFound
	}
	if tl.CompletedAt != nil {
		return false, nil
	}
	at = at.UTC()
	tl.CompletedAt = &at
	m.teamLevels[teamID][levelID] = tl
	return true, nil
}

func (m *MockStorage) CreateMessage(ctx context.Context, msg *game.Message) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("CreateMessage"); err != nil {
		return err
	}
	for _, existing := range m.messages {
		if existing.ID == msg.ID {
			return nil
		}
	}
	m.seq++
	msg.Seq = m.seq
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MockStorage) MessagesForUserAtLevel(ctx context.Context, userID, levelID string, includeDeleted bool) ([]game.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("MessagesForUserAtLevel"); err != nil {
		return nil, err
	}
	var out []game.Message
	for _, msg := range m.messages {
		if msg.UserID != userID || msg.LevelID != levelID {
			continue
		}
		if msg.Deleted() && !includeDeleted {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *MockStorage) FirstMessageForTeamAtLevel(ctx context.Context, teamID, levelID string) (*game.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("FirstMessageForTeamAtLevel"); err != nil {
		return nil, err
	}
	for _, msg := range m.messages {
		if msg.TeamID == teamID && msg.LevelID == levelID {
			return &msg, nil
		}
	}
	return nil, nil
}

func (m *MockStorage) SoftDeleteMessagesForUserAtLevel(ctx context.Context, userID, levelID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("SoftDeleteMessagesForUserAtLevel"); err != nil {
		return 0, err
	}
	count := 0
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.UserID == userID && msg.LevelID == levelID && !msg.Deleted() {
			deletedAt := at.UTC()
			msg.DeletedAt = &deletedAt
			count++
		}
	}
	return count, nil
}

func (m *MockStorage) DeleteMessage(ctx context.Context, msg *game.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("DeleteMessage"); err != nil {
		return err
	}
	m.messages = slices.DeleteFunc(m.messages, func(existing game.Message) bool {
		return existing.ID == msg.ID
	})
	return nil
}

func (m *MockStorage) GetUser(ctx context.Context, userID string) (*game.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("GetUser"); err != nil {
		return nil, err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MockStorage) CreateUserIfAbsent(ctx context.Context, user *game.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("CreateUserIfAbsent"); err != nil {
		return false, err
	}
	if _, ok := m.users[user.ID]; ok {
		return false, nil
	}
	m.users[user.ID] = *user
	return true, nil
}

func (m *MockStorage) AppendCoordinate(ctx context.Context, snap *game.CoordinateSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("AppendCoordinate"); err != nil {
		return err
	}
	m.coords = append(m.coords, *snap)
	return nil
}

func (m *MockStorage) CoordinatesForTeam(ctx context.Context, teamID string) ([]game.CoordinateSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("CoordinatesForTeam"); err != nil {
		return nil, err
	}
	var out []game.CoordinateSnapshot
	for _, c := range m.coords {
		if c.TeamID == teamID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockStorage) CreatePhoto(ctx context.Context, photo *game.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("CreatePhoto"); err != nil {
		return err
	}
	m.photos = append(m.photos, *photo)
	return nil
}

func (m *MockStorage) PhotosForTeam(ctx context.Context, teamID string) ([]game.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track("PhotosForTeam"); err != nil {
		return nil, err
	}
	var out []game.Photo
	for _, p := range m.photos {
		if p.TeamID == teamID {
			out = append(out, p)
		}
	}
	return out, nil
}

// AllMessages returns every stored message, including deleted ones, in creation order.
func (m *MockStorage) AllMessages() []game.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.messages)
}
