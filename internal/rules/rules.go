// Package rules is the deterministic game-mechanics calculator. Every
// function is pure and takes an explicit seed; identical inputs always
// produce identical outputs, which is the system's reproducibility
// guarantee. Narrative text is never trusted; these numbers are.
package rules

import (
	"fmt"
	"math"
)

// Linear congruential generator parameters. Not cryptographically secure:
// reproducibility, not unpredictability, is the goal. These values are a
// fixed contract — changing any of them breaks replay of recorded seeds.
const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// Sequence is a seeded stream of floats in [0,1). Each call threads its
// own Sequence; nothing here is shared mutable state.
type Sequence struct {
	state int64
}

// NewSequence normalizes the seed into [0, modulus) so negative seeds
// produce a well-defined stream.
func NewSequence(seed int64) *Sequence {
	state := seed % lcgModulus
	if state < 0 {
		state += lcgModulus
	}
	return &Sequence{state: state}
}

// Next advances the generator and returns the next float in [0,1).
func (s *Sequence) Next() float64 {
	s.state = (s.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(s.state) / lcgModulus
}

// NextSeed advances a seed one integer step. Sessions rotate their seed
// with this between steps so each step draws from a fresh derived stream.
func NextSeed(seed int64) int64 {
	state := seed % lcgModulus
	if state < 0 {
		state += lcgModulus
	}
	return (state*lcgMultiplier + lcgIncrement) % lcgModulus
}

// Risk grades how boldly the player acts. Riskier actions hit less often
// but deal more damage, and close more captures.
type Risk string

const (
	RiskSafe     Risk = "safe"
	RiskModerate Risk = "moderate"
	RiskRisky    Risk = "risky"
)

// ParseRisk maps a normalized choice label to a risk grade.
func ParseRisk(label string) (Risk, bool) {
	switch Risk(label) {
	case RiskSafe, RiskModerate, RiskRisky:
		return Risk(label), true
	}
	return "", false
}

// Difficulty scales damage on quests and events.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps a normalized difficulty label to the engine's grade.
func ParseDifficulty(label string) (Difficulty, bool) {
	switch Difficulty(label) {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return Difficulty(label), true
	}
	return "", false
}

// Balance constants. Heuristic values carried over as a fixed contract,
// reproduced exactly.
var (
	riskHitMultiplier = map[Risk]float64{
		RiskSafe:     0.9,
		RiskModerate: 0.75,
		RiskRisky:    0.55,
	}
	riskDamageMultiplier = map[Risk]float64{
		RiskSafe:     0.75,
		RiskModerate: 1.05,
		RiskRisky:    1.5,
	}
	riskCaptureMultiplier = map[Risk]float64{
		RiskSafe:     0.25,
		RiskModerate: 0.45,
		RiskRisky:    0.70,
	}
	difficultyMultiplier = map[Difficulty]float64{
		DifficultyEasy:   0.9,
		DifficultyNormal: 1.15,
		DifficultyHard:   1.45,
	}
)

// captureScoreBonus is awarded for a successful capture.
const captureScoreBonus = 50

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// checkPower rejects malformed numeric input. The engine assumes
// pre-validated game state and never errors for game-logic reasons.
func checkPower(name string, v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("rules: %s is NaN", name)
	}
	if v < 0 {
		return fmt.Errorf("rules: %s %v is negative", name, v)
	}
	return nil
}
