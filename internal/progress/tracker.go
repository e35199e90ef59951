// Package progress resolves where a team is in its hunt and moves it forward.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cal-poly-dxhub/duck-hunt/internal/apperr"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

// ErrNoLevelsAssigned means the team exists but the game setup gave it no levels.
var ErrNoLevelsAssigned = apperr.Setup("no_levels_assigned", errors.New("team has no levels assigned"))

// Position is a team's place in the hunt.
type Position struct {
	// Current is the lowest-index incomplete level. Nil once every level is complete.
	Current *game.TeamLevel
	// Last is the highest-index level, the shared finale.
	Last *game.TeamLevel
	// AllCompleted is set when no incomplete level remains.
	AllCompleted bool
}

// ScanOutcome classifies a marker scan.
type ScanOutcome int

const (
	ScanAdvanced ScanOutcome = iota
	ScanAlreadyCompleted
	ScanWrongLevel
	ScanGameCompleted
)

func (o ScanOutcome) String() string {
	switch o {
	case ScanAdvanced:
		return "advanced"
	case ScanAlreadyCompleted:
		return "already_completed"
	case ScanWrongLevel:
		return "wrong_level"
	case ScanGameCompleted:
		return "game_completed"
	default:
		return "unknown"
	}
}

// ScanResult is the outcome of a scan with the levels it touched.
type ScanResult struct {
	Outcome ScanOutcome
	// Completed is the level this scan finished (ScanAdvanced only).
	Completed *game.TeamLevel
	// Next is the level the team moved to. Nil with ScanAdvanced means the finale was completed.
	Next *game.TeamLevel
	// Position is the team's position after the scan.
	Position Position
}

// Tracker implements the team level state machine on top of the team level store.
type Tracker struct {
	store  storage.TeamLevelStore
	logger *slog.Logger
	now    func() time.Time
}

func New(store storage.TeamLevelStore, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the clock used for completion timestamps.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// AllForTeam returns the team's records in play order.
func (t *Tracker) AllForTeam(ctx context.Context, teamID string) ([]game.TeamLevel, error) {
	tls, err := t.store.TeamLevelsForTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team levels: %w", err)
	}
	game.SortTeamLevels(tls)
	return tls, nil
}

// CurrentLevel resolves the team's position. A team without records is a setup error.
func (t *Tracker) CurrentLevel(ctx context.Context, teamID string) (Position, error) {
	tls, err := t.AllForTeam(ctx, teamID)
	if err != nil {
		return Position{}, err
	}
	return positionOf(tls)
}

func positionOf(tls []game.TeamLevel) (Position, error) {
	if len(tls) == 0 {
		return Position{}, ErrNoLevelsAssigned
	}
	pos := Position{Last: &tls[len(tls)-1]}
	for i := range tls {
		if !tls[i].Completed() {
			pos.Current = &tls[i]
			return pos, nil
		}
	}
	pos.AllCompleted = true
	return pos, nil
}

// MarkCompleted completes the level unless it is already complete and reports whether this call did it.
func (t *Tracker) MarkCompleted(ctx context.Context, teamID, levelID string) (bool, error) {
	done, err := t.store.CompleteTeamLevel(ctx, teamID, levelID, t.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, apperr.NotFound("team_level_not_found", "That level is not part of your hunt.", err)
		}
		return false, fmt.Errorf("failed to mark level completed: %w", err)
	}
	return done, nil
}

// NextLevel returns the record after currentLevelID in play order, or nil when it is the last.
func (t *Tracker) NextLevel(ctx context.Context, teamID, currentLevelID string) (*game.TeamLevel, error) {
	tls, err := t.AllForTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return nextAfter(tls, currentLevelID)
}

func nextAfter(tls []game.TeamLevel, levelID string) (*game.TeamLevel, error) {
	for i := range tls {
		if tls[i].LevelID != levelID {
			continue
		}
		if i+1 < len(tls) {
			return &tls[i+1], nil
		}
		return nil, nil
	}
	return nil, apperr.NotFound("team_level_not_found", "That level is not part of your hunt.",
		fmt.Errorf("level %s not assigned", levelID))
}

// Scan applies a marker scan. Only the request that wins the conditional completion advances the team.
func (t *Tracker) Scan(ctx context.Context, teamID, levelID string) (ScanResult, error) {
	tls, err := t.AllForTeam(ctx, teamID)
	if err != nil {
		return ScanResult{}, err
	}
	pos, err := positionOf(tls)
	if err != nil {
		return ScanResult{}, err
	}
	if pos.AllCompleted {
		return ScanResult{Outcome: ScanGameCompleted, Position: pos}, nil
	}

	if pos.Current.LevelID != levelID {
		for _, tl := range tls {
			if tl.LevelID == levelID && tl.Completed() {
				return ScanResult{Outcome: ScanAlreadyCompleted, Position: pos}, nil
			}
		}
		return ScanResult{Outcome: ScanWrongLevel, Position: pos}, nil
	}

	done, err := t.MarkCompleted(ctx, teamID, levelID)
	if err != nil {
		return ScanResult{}, err
	}
	if !done {
		// Another request completed it first; report the fresh position instead of advancing twice.
		t.logger.Info("Level already completed by a concurrent scan", "team_id", teamID, "level_id", levelID)
		fresh, err := t.CurrentLevel(ctx, teamID)
		if err != nil {
			return ScanResult{}, err
		}
		if fresh.AllCompleted {
			return ScanResult{Outcome: ScanGameCompleted, Position: fresh}, nil
		}
		return ScanResult{Outcome: ScanAlreadyCompleted, Position: fresh}, nil
	}

	completed := *pos.Current
	at := t.now().UTC()
	completed.CompletedAt = &at

	next, err := nextAfter(tls, levelID)
	if err != nil {
		return ScanResult{}, err
	}

	after := Position{Current: next, Last: pos.Last, AllCompleted: next == nil}
	t.logger.Info("Team advanced",
		"team_id", teamID,
		"completed_level_id", levelID,
		"finished", next == nil)
	return ScanResult{Outcome: ScanAdvanced, Completed: &completed, Next: next, Position: after}, nil
}
