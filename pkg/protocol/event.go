package protocol

import (
	"fmt"
	"strings"
)

// Event types the designers may produce.
const (
	EventBattle      = "battle"
	EventEncounter   = "encounter"
	EventExploration = "exploration"
)

// Choice actions the resolver understands.
const (
	ActionBattle  = "battle"
	ActionCapture = "capture"
	ActionFlee    = "flee"
	ActionExplore = "explore"
)

// Risk labels carried on choices. Position in a choice set decides the
// fallback when a generated label is out of range.
const (
	RiskSafe     = "safe"
	RiskModerate = "moderate"
	RiskRisky    = "risky"
)

// KnownRisk reports whether r is a recognized risk label.
func KnownRisk(r string) bool {
	switch r {
	case RiskSafe, RiskModerate, RiskRisky:
		return true
	}
	return false
}

// RiskByPosition is the positional default mapping for risk labels:
// the first choice is safe, the second moderate, everything after risky.
func RiskByPosition(i int) string {
	switch i {
	case 0:
		return RiskSafe
	case 1:
		return RiskModerate
	default:
		return RiskRisky
	}
}

// Event is a generated narrative+mechanical unit. Its shape is a contract;
// its content is generated, never computed.
type Event struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	EventType   string   `json:"event_type"`
	EnemyName   string   `json:"enemy_name,omitempty"`
	EnemyPower  float64  `json:"enemy_power,omitempty"`
	EnemyTypes  []string `json:"enemy_types,omitempty"`
	Difficulty  string   `json:"difficulty"`
}

// Normalize applies the schema defaults for generated events: missing
// difficulty becomes normal, missing enemy types become ["normal"], an
// unknown event type becomes an encounter, and a non-positive enemy power
// on battle events becomes 1.
func (e *Event) Normalize() {
	if !KnownDifficulty(e.Difficulty) {
		e.Difficulty = DifficultyNormal
	}
	switch e.EventType {
	case EventBattle, EventEncounter, EventExploration:
	default:
		e.EventType = EventEncounter
	}
	if len(e.EnemyTypes) == 0 {
		e.EnemyTypes = []string{"normal"}
	}
	if e.EventType == EventBattle && e.EnemyPower <= 0 {
		e.EnemyPower = 1
	}
}

// Choice is one option offered to the player for an event.
type Choice struct {
	ID     string `json:"id,omitempty"`
	Label  string `json:"label"`
	Action string `json:"action"`
	Risk   string `json:"risk"`
}

// NormalizeChoices applies the schema defaults for a generated choice set:
// out-of-range risk labels default by position, unknown actions become
// explore, and empty labels get positional placeholders.
func NormalizeChoices(choices []Choice) []Choice {
	out := make([]Choice, len(choices))
	for i, c := range choices {
		if !KnownRisk(c.Risk) {
			c.Risk = RiskByPosition(i)
		}
		switch c.Action {
		case ActionBattle, ActionCapture, ActionFlee, ActionExplore:
		default:
			c.Action = ActionExplore
		}
		if strings.TrimSpace(c.Label) == "" {
			c.Label = fmt.Sprintf("Option %d", i+1)
		}
		out[i] = c
	}
	return out
}

// Outcome is the resolved result of a choice: mechanics from the rules
// engine, narration from the narrator.
type Outcome struct {
	Action      string   `json:"action"`
	Success     bool     `json:"success"`
	DamageDealt float64  `json:"damage_dealt"`
	ScoreDelta  int      `json:"score_delta"`
	Narration   string   `json:"narration"`
	Warnings    []string `json:"warnings,omitempty"`
}

// EventBundle is AdvanceEvent's result: the event, its narration, and the
// validated choice set.
type EventBundle struct {
	Event     Event    `json:"event"`
	Narration string   `json:"narration"`
	Choices   []Choice `json:"choices"`
}

// Resolution is ResolveChoice's result. UpdatedTeam is a derived copy;
// the caller's state is never mutated.
type Resolution struct {
	Outcome     Outcome     `json:"outcome"`
	UpdatedTeam []Combatant `json:"updated_team"`
	SessionOver bool        `json:"session_over"`
}
