package rules

import (
	"fmt"
	"math"
)

// BattleResult is one battle settlement. DamageDealt and ScoreDelta are
// zero on a miss.
type BattleResult struct {
	Success     bool    `json:"success"`
	DamageDealt float64 `json:"damage_dealt"`
	ScoreDelta  int     `json:"score_delta"`
}

// ComputeBattle settles one attack. Hit chance scales with the power gap
// and the risk grade; damage scales with player power, risk, difficulty,
// and a seeded variance in [0.8, 1.2]. The first draw decides hit/miss
// (a high roll lands the hit), the second draw is the variance.
func ComputeBattle(playerPower, enemyPower float64, risk Risk, seed int64, difficulty Difficulty) (BattleResult, error) {
	if err := checkPower("player power", playerPower); err != nil {
		return BattleResult{}, err
	}
	if err := checkPower("enemy power", enemyPower); err != nil {
		return BattleResult{}, err
	}
	hitMult, ok := riskHitMultiplier[risk]
	if !ok {
		return BattleResult{}, fmt.Errorf("rules: unknown risk level %q", risk)
	}
	diffMult, ok := difficultyMultiplier[difficulty]
	if !ok {
		return BattleResult{}, fmt.Errorf("rules: unknown difficulty %q", difficulty)
	}

	seq := NewSequence(seed)

	base := clamp(0.75+0.05*(playerPower-enemyPower), 0.1, 1.0)
	hitChance := base * hitMult

	roll := seq.Next()
	success := roll >= 1.0-hitChance

	variance := 0.8 + 0.4*seq.Next()
	damage := (20.0 + 1.8*playerPower) * riskDamageMultiplier[risk] * diffMult * variance

	res := BattleResult{Success: success}
	if success {
		res.DamageDealt = damage
		res.ScoreDelta = int(math.Round(damage))
	}
	return res, nil
}
