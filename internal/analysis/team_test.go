package analysis

import (
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

func TestAssessTeam(t *testing.T) {
	t.Run("full strength", func(t *testing.T) {
		status := AssessTeam([]protocol.Combatant{
			{Name: "Emberfox", MaxHealth: 80, CurrentHealth: 80, Types: []string{"fire"}},
			{Name: "Tidewing", MaxHealth: 70, CurrentHealth: 70, Types: []string{"water"}},
		})
		if status.Standing != 2 || status.Fainted != 0 {
			t.Errorf("expected 2 standing 0 fainted, got %d/%d", status.Standing, status.Fainted)
		}
		if status.AverageHealthPct != 1.0 {
			t.Errorf("expected average 1.0, got %v", status.AverageHealthPct)
		}
		if status.Critical {
			t.Error("expected no critical member")
		}
		if !slices.Contains(status.Conditions, "FULL_STRENGTH") {
			t.Errorf("expected FULL_STRENGTH, got %v", status.Conditions)
		}
	})

	t.Run("mixed roster", func(t *testing.T) {
		status := AssessTeam([]protocol.Combatant{
			{Name: "Emberfox", MaxHealth: 80, CurrentHealth: 60, Types: []string{"fire"}},
			{Name: "Mossback", MaxHealth: 90, CurrentHealth: 0, Types: []string{"grass"}},
			{Name: "Tidewing", MaxHealth: 70, CurrentHealth: 14, Types: []string{"water", "flying"}},
		})
		if status.Standing != 2 || status.Fainted != 1 {
			t.Errorf("expected 2 standing 1 fainted, got %d/%d", status.Standing, status.Fainted)
		}
		if status.WeakestStanding != 2 {
			t.Errorf("expected weakest index 2, got %d", status.WeakestStanding)
		}
		if math.Abs(status.AverageHealthPct-0.475) > 1e-9 {
			t.Errorf("expected average 0.475, got %v", status.AverageHealthPct)
		}
		if !status.Critical {
			t.Error("expected critical flag for member at 20%")
		}
		if !slices.Contains(status.Conditions, "CRITICAL_MEMBER") || !slices.Contains(status.Conditions, "WOUNDED") {
			t.Errorf("expected CRITICAL_MEMBER and WOUNDED, got %v", status.Conditions)
		}
	})

	t.Run("last standing", func(t *testing.T) {
		status := AssessTeam([]protocol.Combatant{
			{Name: "Emberfox", MaxHealth: 80, CurrentHealth: 0},
			{Name: "Tidewing", MaxHealth: 70, CurrentHealth: 70},
		})
		if !slices.Contains(status.Conditions, "LAST_STANDING") {
			t.Errorf("expected LAST_STANDING, got %v", status.Conditions)
		}
	})

	t.Run("wiped", func(t *testing.T) {
		status := AssessTeam([]protocol.Combatant{
			{Name: "Emberfox", MaxHealth: 80, CurrentHealth: 0},
		})
		if status.Standing != 0 {
			t.Errorf("expected 0 standing, got %d", status.Standing)
		}
		if status.WeakestStanding != -1 {
			t.Errorf("expected weakest -1, got %d", status.WeakestStanding)
		}
		if !slices.Contains(status.Conditions, "TEAM_WIPED") {
			t.Errorf("expected TEAM_WIPED, got %v", status.Conditions)
		}
	})

	t.Run("empty team", func(t *testing.T) {
		status := AssessTeam(nil)
		if status.Standing != 0 || status.WeakestStanding != -1 {
			t.Errorf("unexpected status for empty team: %+v", status)
		}
	})
}

func TestDescribeTeam(t *testing.T) {
	text := DescribeTeam([]protocol.Combatant{
		{Name: "Emberfox", MaxHealth: 80, CurrentHealth: 60, Types: []string{"fire", "dark"}},
		{Name: "Mossback", MaxHealth: 90, CurrentHealth: 0, Types: []string{"grass"}},
	})
	if !strings.Contains(text, "1. Emberfox (fire/dark) 60/80 HP") {
		t.Errorf("expected member line, got %q", text)
	}
	if !strings.Contains(text, "2. Mossback (grass) fainted") {
		t.Errorf("expected fainted line, got %q", text)
	}

	if got := DescribeTeam(nil); got != "no team members" {
		t.Errorf("expected placeholder for empty team, got %q", got)
	}
}
