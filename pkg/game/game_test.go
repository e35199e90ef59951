package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortTeamLevels_LowestIndexFirst(t *testing.T) {
	now := time.Now()
	tls := []TeamLevel{
		{LevelID: "c", Index: 2},
		{LevelID: "a", Index: 0, CompletedAt: &now},
		{LevelID: "b", Index: 1},
	}

	SortTeamLevels(tls)

	assert.Equal(t, []string{"a", "b", "c"}, []string{tls[0].LevelID, tls[1].LevelID, tls[2].LevelID})
}

func TestCompareTeamLevels_TieBreaksOnLevelID(t *testing.T) {
	a := TeamLevel{LevelID: "aaa", Index: 1}
	b := TeamLevel{LevelID: "bbb", Index: 1}

	assert.Negative(t, CompareTeamLevels(a, b))
	assert.Positive(t, CompareTeamLevels(b, a))
	assert.Zero(t, CompareTeamLevels(a, a))
}

func TestGame_FinalLevelID(t *testing.T) {
	g := Game{LevelIDs: []string{"one", "two", "finale"}}
	assert.Equal(t, "finale", g.FinalLevelID())
	assert.Empty(t, (&Game{}).FinalLevelID())
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleUser))
	assert.True(t, ValidRole(RoleAssistant))
	assert.False(t, ValidRole("system"))
}
