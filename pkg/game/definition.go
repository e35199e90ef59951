package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Definition is the game setup file authored by organisers.
// The last level is the shared final level.
type Definition struct {
	Name         string            `json:"name,omitempty" yaml:"name,omitempty"`
	LevelsInGame *int              `json:"levelsInGame,omitempty" yaml:"levelsInGame,omitempty" validate:"omitempty,gt=0"`
	Teams        []TeamDefinition  `json:"teams" yaml:"teams" validate:"min=1,dive"`
	Levels       []LevelDefinition `json:"levels" yaml:"levels" validate:"min=1,dive"`
}

type TeamDefinition struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// Difficulty is 0 (friendly), 1 (riddler) or 2 (stern).
	Difficulty int `json:"difficulty,omitempty" yaml:"difficulty,omitempty" validate:"gte=0,lte=2"`
}

type LevelDefinition struct {
	// ID lets organisers print markers before the game is created. Generated when empty.
	ID        string              `json:"id,omitempty" yaml:"id,omitempty" validate:"omitempty,uuid"`
	Name      string              `json:"name" yaml:"name" validate:"required"`
	Character CharacterDefinition `json:"character" yaml:"character"`
	Location  LocationDefinition  `json:"location" yaml:"location"`
	Clues     []string            `json:"clues" yaml:"clues" validate:"min=3,dive,required"`
	EasyClues []string            `json:"easyClues" yaml:"easyClues" validate:"min=2,dive,required"`
	MapLink   string              `json:"mapLink" yaml:"mapLink" validate:"required"`
	MaxTokens int                 `json:"maxTokens" yaml:"maxTokens" validate:"gt=0"`
}

type CharacterDefinition struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Prompt string `json:"prompt" yaml:"prompt" validate:"required"`
}

type LocationDefinition struct {
	Description string   `json:"description" yaml:"description" validate:"required"`
	Latitude    *float64 `json:"latitude" yaml:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" yaml:"longitude" validate:"required,gte=-180,lte=180"`
}

// PlayedLevels is the number of levels each team plays.
func (d *Definition) PlayedLevels() int {
	if d.LevelsInGame == nil {
		return len(d.Levels)
	}
	return *d.LevelsInGame
}

// DefinitionError lists every problem found in a definition.
type DefinitionError struct {
	Problems []string
}

func (e *DefinitionError) Error() string {
	return "invalid game definition: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		def := sl.Current().Interface().(Definition)
		if def.LevelsInGame != nil && *def.LevelsInGame > len(def.Levels) {
			sl.ReportError(*def.LevelsInGame, "levelsInGame", "LevelsInGame", "lte_levels", fmt.Sprint(len(def.Levels)))
		}
		seen := make(map[string]int, len(def.Levels))
		for i, ld := range def.Levels {
			if ld.ID == "" {
				continue
			}
			if first, ok := seen[strings.ToLower(ld.ID)]; ok {
				field := fmt.Sprintf("levels[%d].id", i)
				sl.ReportError(ld.ID, field, field, "duplicate_id", fmt.Sprintf("levels[%d].id", first))
				continue
			}
			seen[strings.ToLower(ld.ID)] = i
		}
	}, Definition{})
	return v
}

// Validate checks the definition and returns a *DefinitionError listing every problem.
func (d *Definition) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate definition: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return &DefinitionError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Definition.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "uuid":
		return field + " must be a UUID"
	case "duplicate_id":
		return fmt.Sprintf("%s repeats %s", field, fe.Param())
	case "lte_levels":
		return fmt.Sprintf("%s must not exceed the number of levels (%s)", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// ParseDefinition decodes a definition. YAML is used when yamlFormat is set, JSON otherwise.
// Unknown JSON fields are rejected.
func ParseDefinition(data []byte, yamlFormat bool) (*Definition, error) {
	var def Definition
	if yamlFormat {
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse YAML definition: %w", err)
		}
		return &def, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse JSON definition: %w", err)
	}
	return &def, nil
}

// LoadDefinition reads a definition file, choosing the format by extension.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ParseDefinition(data, ext == ".yaml" || ext == ".yml")
}
