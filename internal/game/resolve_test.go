package game

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

func battleEvent() protocol.Event {
	return protocol.Event{
		ID:          "ev-1",
		Title:       "Ridge Ambush",
		Description: "A wild creature blocks the path.",
		EventType:   protocol.EventBattle,
		EnemyName:   "Cinder Fox",
		EnemyPower:  6,
		EnemyTypes:  []string{"fire"},
		Difficulty:  protocol.DifficultyEasy,
	}
}

func riskyBattle() protocol.Choice {
	return protocol.Choice{ID: "choice-3", Label: "Throw everything at it", Action: protocol.ActionBattle, Risk: protocol.RiskRisky}
}

func TestResolveChoiceBattleContract(t *testing.T) {
	svc := New(&scriptedCompleter{})
	state := sessionState(t, svc)
	state.Seed = 842720

	res, err := svc.ResolveChoice(context.Background(), state, battleEvent(), riskyBattle())
	if err != nil {
		t.Fatalf("ResolveChoice: %v", err)
	}
	if !res.Outcome.Success {
		t.Fatal("seed 842720 risky/easy must land the hit")
	}
	if got, want := res.Outcome.DamageDealt, 38.809921296296295; got != want {
		t.Errorf("DamageDealt = %v, want %v", got, want)
	}
	if res.Outcome.ScoreDelta != 39 {
		t.Errorf("ScoreDelta = %d, want 39", res.Outcome.ScoreDelta)
	}
	if res.Outcome.Narration == "" {
		t.Error("outcome has no narration")
	}
	if res.SessionOver {
		t.Error("a landed hit must not end the session")
	}
	// A hit leaves the team untouched.
	if res.UpdatedTeam[0].CurrentHealth != state.Team[0].CurrentHealth {
		t.Errorf("active health changed on a hit: %v", res.UpdatedTeam[0].CurrentHealth)
	}
}

func TestResolveChoiceBattleDeterminism(t *testing.T) {
	svc := New(&scriptedCompleter{})
	state := sessionState(t, svc)
	state.Seed = 842720

	first, err := svc.ResolveChoice(context.Background(), state, battleEvent(), riskyBattle())
	if err != nil {
		t.Fatalf("ResolveChoice: %v", err)
	}
	second, err := svc.ResolveChoice(context.Background(), state, battleEvent(), riskyBattle())
	if err != nil {
		t.Fatalf("ResolveChoice: %v", err)
	}
	if first.Outcome.DamageDealt != second.Outcome.DamageDealt || first.Outcome.Success != second.Outcome.Success {
		t.Errorf("same state produced different outcomes: %+v vs %+v", first.Outcome, second.Outcome)
	}
}

func TestResolveChoiceBattleMissCounterattack(t *testing.T) {
	svc := New(&scriptedCompleter{})
	state := sessionState(t, svc)
	state.Seed = 1 // first draw is 0.251..., under the risky hit threshold

	res, err := svc.ResolveChoice(context.Background(), state, battleEvent(), riskyBattle())
	if err != nil {
		t.Fatalf("ResolveChoice: %v", err)
	}
	if res.Outcome.Success {
		t.Fatal("seed 1 risky must miss")
	}
	if res.Outcome.DamageDealt != 0 || res.Outcome.ScoreDelta != 0 {
		t.Errorf("a miss deals no damage and scores nothing, got %v/%d", res.Outcome.DamageDealt, res.Outcome.ScoreDelta)
	}
	// Fire counterstrike against the water-typed active member: resisted,
	// (8 + 1.6*6) * 0.5 = 8.8.
	want := 100 - 8.8
	if got := res.UpdatedTeam[0].CurrentHealth; math.Abs(got-want) > 1e-9 {
		t.Errorf("active health after counter = %v, want %v", got, want)
	}
	if res.UpdatedTeam[1].CurrentHealth != 80 {
		t.Error("the counter must only reach the active member")
	}
	if state.Team[0].CurrentHealth != 100 {
		t.Error("the caller's state must not be mutated")
	}
}

func TestResolveChoiceCapture(t *testing.T) {
	svc := New(&scriptedCompleter{})
	state := sessionState(t, svc)
	state.Seed = 842720

	choice := protocol.Choice{Label: "Lay the snare", Action: protocol.ActionCapture, Risk: protocol.RiskRisky}
	res, err := svc.ResolveChoice(context.Background(), state, battleEvent(), choice)
	if err != nil {
		t.Fatalf("ResolveChoice: %v", err)
	}
	if !res.Outcome.Success {
		t.Fatal("seed 842720 risky capture against power 6 must close")
	}
	if res.Outcome.ScoreDelta != 50 {
		t.Errorf("ScoreDelta = %d, want the capture bonus 50", res.Outcome.ScoreDelta)
	}
	if res.Outcome.DamageDealt != 0 {
		t.Errorf("a capture deals no damage, got %v", res.Outcome.DamageDealt)
	}
}

func TestResolveChoiceFleeHasNoMechanics(t *testing.T) {
	svc := New(&scriptedCompleter{})
	state := sessionState(t, svc)

	choice := protocol.Choice{Label: "Circle around", Action: protocol.ActionFlee, Risk: protocol.RiskSafe}
	res, err := svc.ResolveChoice(context.Background(), state, battleEvent(), choice)
	if err != nil {
		t.Fatalf("ResolveChoice: %v", err)
	}
	if !res.Outcome.Success || res.Outcome.ScoreDelta != 0 || res.Outcome.DamageDealt != 0 {
		t.Errorf("flee must succeed without mechanics, got %+v", res.Outcome)
	}
	for i, c := range res.UpdatedTeam {
		if c.CurrentHealth != state.Team[i].CurrentHealth {
			t.Errorf("team member %d changed on flee", i)
		}
	}
}

func TestResolveChoiceDowngradesBattleWithoutEnemy(t *testing.T) {
	svc := New(&scriptedCompleter{})
	state := sessionState(t, svc)

	event := battleEvent()
	event.EventType = protocol.EventEncounter
	event.EnemyPower = 0
	res, err := svc.ResolveChoice(context.Background(), state, event, riskyBattle())
	if err != nil {
		t.Fatalf("ResolveChoice: %v", err)
	}
	if res.Outcome.Action != protocol.ActionExplore {
		t.Errorf("action = %q, want the exploration downgrade", res.Outcome.Action)
	}
	if len(res.Outcome.Warnings) == 0 {
		t.Error("the downgrade must carry a warning")
	}
}

func TestResolveChoiceNarratorFailureFailsTurn(t *testing.T) {
	scripted := New(&scriptedCompleter{})
	state := sessionState(t, scripted)

	svc := New(failingCompleter{})
	if _, err := svc.ResolveChoice(context.Background(), state, battleEvent(), riskyBattle()); err == nil {
		t.Fatal("a narration transport failure must fail the whole turn")
	}
}

func TestResolveChoiceWipedTeam(t *testing.T) {
	svc := New(&scriptedCompleter{})
	state := sessionState(t, svc)
	for i := range state.Team {
		state.Team[i].CurrentHealth = 0
	}

	if _, err := svc.ResolveChoice(context.Background(), state, battleEvent(), riskyBattle()); !errors.Is(err, ErrTeamWiped) {
		t.Fatalf("err = %v, want ErrTeamWiped", err)
	}
}
