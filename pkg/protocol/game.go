package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty labels carried on quests and events. The rules engine maps
// these to its damage multipliers.
const (
	DifficultyEasy   = "easy"
	DifficultyNormal = "normal"
	DifficultyHard   = "hard"
)

// KnownDifficulty reports whether d is a recognized difficulty label.
func KnownDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Combatant is one member of the player's team. Power derives from max
// health; the rules engine takes it as an explicit input.
type Combatant struct {
	Name          string   `json:"name"`
	SpeciesID     int      `json:"species_id,omitempty"`
	MaxHealth     float64  `json:"max_health"`
	CurrentHealth float64  `json:"current_health"`
	Types         []string `json:"types"`
}

// Power is the combatant's battle power, derived from max health
// (max health 100 → power 5).
func (c Combatant) Power() float64 {
	return c.MaxHealth / 20
}

// Fainted reports whether the combatant is at zero health.
func (c Combatant) Fainted() bool {
	return c.CurrentHealth <= 0
}

// Validate checks the combatant's health invariants.
func (c Combatant) Validate() error {
	if c.Name == "" {
		return errors.New("combatant name is empty")
	}
	if c.MaxHealth <= 0 {
		return fmt.Errorf("combatant %s: max health %v is not positive", c.Name, c.MaxHealth)
	}
	if c.CurrentHealth < 0 {
		return fmt.Errorf("combatant %s: current health %v is negative", c.Name, c.CurrentHealth)
	}
	if c.CurrentHealth > c.MaxHealth {
		return fmt.Errorf("combatant %s: current health %v exceeds max %v", c.Name, c.CurrentHealth, c.MaxHealth)
	}
	return nil
}

// Quest frames a session: what the player is doing and for how many steps.
type Quest struct {
	Title           string `json:"title"`
	Objective       string `json:"objective"`
	Difficulty      string `json:"difficulty"`
	TargetStepCount int    `json:"target_step_count"`
}

// Normalize applies the schema defaults for generated quests: unknown
// difficulty falls back to normal, a target step count outside [3,12]
// falls back to 6, and a missing title gets a placeholder.
func (q *Quest) Normalize() {
	if !KnownDifficulty(q.Difficulty) {
		q.Difficulty = DifficultyNormal
	}
	if q.TargetStepCount < 3 || q.TargetStepCount > 12 {
		q.TargetStepCount = 6
	}
	if strings.TrimSpace(q.Title) == "" {
		q.Title = "An Unnamed Journey"
	}
}

// GameState is one session's caller-held value. Every orchestration call
// receives it by value and returns derived values; nothing in the core
// mutates it in place or persists it.
type GameState struct {
	SessionID       string      `json:"session_id"`
	Style           string      `json:"style,omitempty"`
	Team            []Combatant `json:"team"`
	CurrentStep     int         `json:"current_step"`
	CumulativeScore int         `json:"cumulative_score"`
	Seed            int64       `json:"seed"`
	Quest           Quest       `json:"quest"`
}

// Active returns the first combatant still standing and its index,
// or -1 when the team is wiped.
func (s GameState) Active() (Combatant, int) {
	for i, c := range s.Team {
		if !c.Fainted() {
			return c, i
		}
	}
	return Combatant{}, -1
}

// TeamWiped reports whether every team member has fainted.
func (s GameState) TeamWiped() bool {
	_, i := s.Active()
	return i == -1
}

// Validate checks the session invariants the orchestration layer relies on.
func (s GameState) Validate() error {
	if len(s.Team) == 0 {
		return errors.New("protocol: session has no team")
	}
	for _, c := range s.Team {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
	}
	if s.CurrentStep < 0 {
		return fmt.Errorf("protocol: session step %d is negative", s.CurrentStep)
	}
	return nil
}

// GameOver describes how a session ended.
type GameOver struct {
	Over    bool   `json:"over"`
	Victory bool   `json:"victory"`
	Reason  string `json:"reason,omitempty"`
}
