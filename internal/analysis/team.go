// Package analysis derives compact, explainable views over game state:
// team condition, threat level against an enemy, and a risk posture
// recommendation. Everything here is pure; agent policies use these
// views to answer votes and negotiation rounds without a completion
// call.
package analysis

import (
	"fmt"
	"strings"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

const (
	criticalHealthFraction = 0.25
	woundedHealthFraction  = 0.5
)

// TeamStatus summarizes a team roster. Conditions carry the flags that
// fired so callers can explain a recommendation.
type TeamStatus struct {
	Standing         int
	Fainted          int
	AverageHealthPct float64
	WeakestStanding  int
	Critical         bool
	Conditions       []string
}

// AssessTeam derives a TeamStatus. AverageHealthPct and WeakestStanding
// consider standing members only; WeakestStanding is -1 when the team
// is wiped.
func AssessTeam(team []protocol.Combatant) TeamStatus {
	status := TeamStatus{WeakestStanding: -1}
	weakest := 2.0
	total := 0.0
	for i, c := range team {
		if c.Fainted() {
			status.Fainted++
			continue
		}
		status.Standing++
		pct := healthFraction(c)
		total += pct
		if pct < weakest {
			weakest = pct
			status.WeakestStanding = i
		}
		if pct <= criticalHealthFraction {
			status.Critical = true
		}
	}
	if status.Standing > 0 {
		status.AverageHealthPct = total / float64(status.Standing)
	}
	status.Conditions = deriveConditions(status)
	return status
}

// DescribeTeam renders one line per member for prompt context.
func DescribeTeam(team []protocol.Combatant) string {
	if len(team) == 0 {
		return "no team members"
	}
	var b strings.Builder
	for i, c := range team {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, c.Name)
		if len(c.Types) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(c.Types, "/"))
		}
		if c.Fainted() {
			b.WriteString(" fainted")
		} else {
			fmt.Fprintf(&b, " %.0f/%.0f HP", c.CurrentHealth, c.MaxHealth)
		}
	}
	return b.String()
}

func healthFraction(c protocol.Combatant) float64 {
	if c.MaxHealth <= 0 {
		return 0
	}
	return c.CurrentHealth / c.MaxHealth
}

func deriveConditions(status TeamStatus) []string {
	conditions := make([]string, 0, 3)
	if status.Standing == 0 {
		return append(conditions, "TEAM_WIPED")
	}
	if status.Standing == 1 && status.Fainted > 0 {
		conditions = append(conditions, "LAST_STANDING")
	}
	if status.Critical {
		conditions = append(conditions, "CRITICAL_MEMBER")
	}
	if status.AverageHealthPct < woundedHealthFraction {
		conditions = append(conditions, "WOUNDED")
	} else if status.Fainted == 0 && !status.Critical {
		conditions = append(conditions, "FULL_STRENGTH")
	}
	return conditions
}
