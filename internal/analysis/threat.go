package analysis

import (
	"github.com/wildtale-io/wildtale/internal/rules"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// ThreatLevel grades an enemy relative to the active member.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "low"
	ThreatEven   ThreatLevel = "even"
	ThreatHigh   ThreatLevel = "high"
	ThreatSevere ThreatLevel = "severe"
)

// ThreatAssessment explains how dangerous an enemy looks.
// Effectiveness is the active member's best type multiplier against the
// enemy; Vulnerability is the enemy's best multiplier back.
type ThreatAssessment struct {
	Effectiveness float64
	Vulnerability float64
	PowerGap      float64
	Level         ThreatLevel
}

// AssessThreat grades an enemy against the active member. The power gap
// dominates; type matchups adjust the grade only when powers are close.
func AssessThreat(active protocol.Combatant, enemyPower float64, enemyTypes []string) ThreatAssessment {
	assessment := ThreatAssessment{
		Effectiveness: bestMultiplier(active.Types, enemyTypes),
		Vulnerability: bestMultiplier(enemyTypes, active.Types),
		PowerGap:      enemyPower - active.Power(),
	}
	switch {
	case assessment.PowerGap >= 3 || (assessment.PowerGap >= 1 && assessment.Vulnerability >= 2):
		assessment.Level = ThreatSevere
	case assessment.PowerGap >= 1 || assessment.Vulnerability >= 2:
		assessment.Level = ThreatHigh
	case assessment.PowerGap <= -2 || (assessment.Effectiveness >= 2 && assessment.PowerGap <= 0):
		assessment.Level = ThreatLow
	default:
		assessment.Level = ThreatEven
	}
	return assessment
}

// RecommendRisk maps team condition and threat grade to a risk posture.
func RecommendRisk(status TeamStatus, threat ThreatAssessment) string {
	switch {
	case status.Critical || threat.Level == ThreatSevere:
		return protocol.RiskSafe
	case threat.Level == ThreatLow && status.AverageHealthPct >= woundedHealthFraction:
		return protocol.RiskRisky
	default:
		return protocol.RiskModerate
	}
}

// bestMultiplier returns the strongest line of attack the attacker's
// types offer against the defender's, 1.0 when either side is untyped.
func bestMultiplier(attackTypes, defenderTypes []string) float64 {
	if len(attackTypes) == 0 || len(defenderTypes) == 0 {
		return 1.0
	}
	best := 0.0
	for _, t := range attackTypes {
		if m := rules.TypeEffectiveness(t, defenderTypes); m > best {
			best = m
		}
	}
	return best
}
