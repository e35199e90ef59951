package textfilter

import (
	"context"
	"regexp"
)

// Direction says whether text is coming from a player or going to one.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Verdict is the result of a content-safety check.
type Verdict struct {
	Blocked bool
	// FilteredText is the text to use when not blocked. It may differ from the input.
	FilteredText string
	Reason       string
}

const (
	ReasonBlockedTerm     = "blocked_term"
	ReasonPromptInjection = "prompt_injection"
	ReasonProfanity       = "profanity_replaced"
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(the\s+|your\s+)?(previous|prior|above)\s+(instructions|rules|prompts?)\b`),
	regexp.MustCompile(`(?i)\bdisregard\s+(all\s+)?(the\s+|your\s+)?(previous|prior|above|system)\s+(instructions|rules|prompts?)\b`),
	regexp.MustCompile(`(?i)\b(reveal|print|show|repeat)\s+(me\s+)?(your|the)\s+system\s+prompt\b`),
	regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(in\s+)?(developer|dan|jailbreak)\s*mode\b`),
	regexp.MustCompile(`(?i)\bpretend\s+(that\s+)?you\s+(have\s+no|are\s+not\s+bound\s+by)\s+(rules|restrictions)\b`),
}

// Guardrail checks text locally. It never returns an error.
type Guardrail struct {
	filter *ProfanityFilter
}

func NewGuardrail() *Guardrail {
	return &Guardrail{filter: NewProfanityFilter()}
}

// Check blocks slurs in both directions and prompt injection in player input. Mild profanity is replaced.
func (g *Guardrail) Check(ctx context.Context, text string, dir Direction) (Verdict, error) {
	if g.filter.ContainsBlocked(text) {
		return Verdict{Blocked: true, Reason: ReasonBlockedTerm}, nil
	}
	if dir == DirectionInput {
		for _, re := range injectionPatterns {
			if re.MatchString(text) {
				return Verdict{Blocked: true, Reason: ReasonPromptInjection}, nil
			}
		}
	}
	if g.filter.ContainsProfanity(text) {
		return Verdict{FilteredText: g.filter.FilterText(text), Reason: ReasonProfanity}, nil
	}
	return Verdict{FilteredText: text}, nil
}
