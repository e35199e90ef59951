package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validLevel(name string) LevelDefinition {
	return LevelDefinition{
		Name: name,
		Character: CharacterDefinition{
			Name:   "Quackers",
			Prompt: "You are Quackers, a retired sea captain duck.",
		},
		Location: LocationDefinition{
			Description: "Behind the library fountain",
			Latitude:    ptr(35.3),
			Longitude:   ptr(-120.66),
		},
		Clues:     []string{"water", "books", "stone"},
		EasyClues: []string{"near the library", "listen for splashing"},
		MapLink:   "https://maps.example.com/fountain",
		MaxTokens: 200,
	}
}

func validDefinition() *Definition {
	return &Definition{
		Name:   "Spring Hunt",
		Teams:  []TeamDefinition{{Name: "Mallards"}, {Name: "Teals"}},
		Levels: []LevelDefinition{validLevel("Fountain"), validLevel("Clock Tower"), validLevel("Finale")},
	}
}

func TestDefinition_Validate_Valid(t *testing.T) {
	def := validDefinition()
	require.NoError(t, def.Validate())

	def.LevelsInGame = ptr(3)
	assert.NoError(t, def.Validate())
	assert.Equal(t, 3, def.PlayedLevels())
}

func TestDefinition_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Definition)
		problem string
	}{
		{"no teams", func(d *Definition) { d.Teams = nil }, "teams must have at least 1 entries"},
		{"blank team name", func(d *Definition) { d.Teams[1].Name = "" }, "teams[1].name is required"},
		{"no levels", func(d *Definition) { d.Levels = nil }, "levels must have at least 1 entries"},
		{"missing map link", func(d *Definition) { d.Levels[0].MapLink = "" }, "levels[0].mapLink is required"},
		{"zero tokens", func(d *Definition) { d.Levels[2].MaxTokens = 0 }, "levels[2].maxTokens must be greater than 0"},
		{"missing persona prompt", func(d *Definition) { d.Levels[0].Character.Prompt = "" }, "levels[0].character.prompt is required"},
		{"latitude out of range", func(d *Definition) { d.Levels[1].Location.Latitude = ptr(91.0) }, "levels[1].location.latitude is out of range"},
		{"longitude missing", func(d *Definition) { d.Levels[1].Location.Longitude = nil }, "levels[1].location.longitude is required"},
		{"two clues", func(d *Definition) { d.Levels[0].Clues = []string{"a", "b"} }, "levels[0].clues must have at least 3 entries"},
		{"empty clue", func(d *Definition) { d.Levels[0].Clues[2] = "" }, "levels[0].clues[2] is required"},
		{"one easy clue", func(d *Definition) { d.Levels[0].EasyClues = []string{"a"} }, "levels[0].easyClues must have at least 2 entries"},
		{"levels in game zero", func(d *Definition) { d.LevelsInGame = ptr(0) }, "levelsInGame must be greater than 0"},
		{"levels in game too many", func(d *Definition) { d.LevelsInGame = ptr(4) }, "levelsInGame must not exceed the number of levels (3)"},
		{"bad level id", func(d *Definition) { d.Levels[0].ID = "marker-1" }, "levels[0].id must be a UUID"},
		{"duplicate level id", func(d *Definition) {
			d.Levels[0].ID = "0f8c7b52-3f1e-4c55-9d57-2b9f4f0e6a01"
			d.Levels[2].ID = d.Levels[0].ID
		}, "levels[2].id repeats levels[0].id"},
		{"difficulty too high", func(d *Definition) { d.Teams[0].Difficulty = 3 }, "teams[0].difficulty is out of range"},
		{"negative difficulty", func(d *Definition) { d.Teams[1].Difficulty = -1 }, "teams[1].difficulty is out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)

			err := def.Validate()
			require.Error(t, err)
			var derr *DefinitionError
			require.ErrorAs(t, err, &derr)
			assert.Contains(t, derr.Problems, tt.problem)
		})
	}
}

func TestLoadDefinition_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlDoc := `
name: Spring Hunt
levelsInGame: 2
teams:
  - name: Mallards
levels:
  - name: Fountain
    character: {name: Quackers, prompt: "You are Quackers."}
    location: {description: Fountain, latitude: 35.3, longitude: -120.6}
    clues: [a, b, c]
    easyClues: [d, e]
    mapLink: https://maps.example.com/1
    maxTokens: 150
  - name: Finale
    character: {name: Drake, prompt: "You are Drake."}
    location: {description: Quad, latitude: 35.4, longitude: -120.7}
    clues: [f, g, h]
    easyClues: [i, j]
    mapLink: https://maps.example.com/2
    maxTokens: 150
`
	yamlPath := filepath.Join(dir, "hunt.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlDoc), 0o644))

	def, err := LoadDefinition(yamlPath)
	require.NoError(t, err)
	require.NoError(t, def.Validate())
	assert.Equal(t, 2, def.PlayedLevels())
	assert.Equal(t, "Drake", def.Levels[1].Character.Name)
	assert.InDelta(t, -120.7, *def.Levels[1].Location.Longitude, 1e-9)

	jsonPath := filepath.Join(dir, "hunt.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"teams":[{"name":"A"}],"levels":[],"surprise":true}`), 0o644))
	_, err = LoadDefinition(jsonPath)
	assert.ErrorContains(t, err, "unknown field")
}
