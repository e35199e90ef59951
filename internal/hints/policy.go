// Package hints picks how much help a team gets based on how long it has been stuck at a level.
package hints

import (
	"math/rand/v2"
	"time"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/prompts"
)

type Tier string

const (
	TierAnswer   Tier = "answer"
	TierEasyClue Tier = "easy-clue"
	TierMapLink  Tier = "map-link"
)

// Policy holds the dwell thresholds. Both bounds of the easy-clue window are inclusive.
type Policy struct {
	EasyClueAfter time.Duration
	MapLinkAfter  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{EasyClueAfter: 10 * time.Minute, MapLinkAfter: 15 * time.Minute}
}

func (p Policy) TierFor(elapsed time.Duration) Tier {
	switch {
	case elapsed < p.EasyClueAfter:
		return TierAnswer
	case elapsed <= p.MapLinkAfter:
		return TierEasyClue
	default:
		return TierMapLink
	}
}

// Elapsed is the dwell time since the team's first message. A missing anchor or one in the future counts as zero.
func Elapsed(first *game.Message, now time.Time) time.Duration {
	if first == nil {
		return 0
	}
	d := now.Sub(first.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Hint is a synthesized reply for the tiers that never call a model.
type Hint struct {
	Text    string
	MapLink string
}

// Reply builds the easy-clue or map-link reply. It returns false for TierAnswer.
func (p Policy) Reply(tier Tier, level *game.Level, rng *rand.Rand) (Hint, bool) {
	switch tier {
	case TierEasyClue:
		if len(level.EasyClues) == 0 {
			// validated definitions always carry easy clues; degrade to the map link otherwise
			return mapHint(level), true
		}
		return Hint{Text: level.EasyClues[rng.IntN(len(level.EasyClues))]}, true
	case TierMapLink:
		return mapHint(level), true
	default:
		return Hint{}, false
	}
}

func mapHint(level *game.Level) Hint {
	return Hint{Text: prompts.MapLinkMessage + level.MapLink, MapLink: level.MapLink}
}
