package game

import (
	"testing"

	"github.com/wildtale-io/wildtale/internal/rules"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

func midQuestState() protocol.GameState {
	return protocol.GameState{
		SessionID:       "s-1",
		Team:            healthyTeam(),
		CurrentStep:     1,
		CumulativeScore: 39,
		Seed:            842720,
		Quest:           protocol.Quest{Title: "T", Objective: "O", Difficulty: "easy", TargetStepCount: 4},
	}
}

func TestAdvanceState(t *testing.T) {
	state := midQuestState()

	next, over := AdvanceState(state, state.Team, 50)
	if over.Over {
		t.Fatalf("mid-quest advance ended the session: %+v", over)
	}
	if next.CurrentStep != 2 {
		t.Errorf("step = %d, want 2", next.CurrentStep)
	}
	if want := rules.NextSeed(842720); next.Seed != want {
		t.Errorf("seed = %d, want the rotated %d", next.Seed, want)
	}
	if next.CumulativeScore != 89 {
		t.Errorf("score = %d, want 89", next.CumulativeScore)
	}
	if state.CurrentStep != 1 || state.Seed != 842720 {
		t.Error("AdvanceState must not mutate its input")
	}
}

func TestAdvanceStateVictory(t *testing.T) {
	state := midQuestState()
	state.CurrentStep = 3 // next step reaches the target of 4

	_, over := AdvanceState(state, state.Team, 0)
	if !over.Over || !over.Victory {
		t.Fatalf("reaching the target step count must be a victory, got %+v", over)
	}
}

func TestAdvanceStateDefeat(t *testing.T) {
	state := midQuestState()
	wiped := healthyTeam()
	for i := range wiped {
		wiped[i].CurrentHealth = 0
	}

	next, over := AdvanceState(state, wiped, 0)
	if !over.Over || over.Victory {
		t.Fatalf("a wiped team must be a defeat, got %+v", over)
	}
	if !next.TeamWiped() {
		t.Error("next state should carry the wiped team")
	}
}

func TestAdvanceStateDefeatBeatsVictory(t *testing.T) {
	state := midQuestState()
	state.CurrentStep = 3
	wiped := healthyTeam()
	for i := range wiped {
		wiped[i].CurrentHealth = 0
	}

	_, over := AdvanceState(state, wiped, 0)
	if !over.Over || over.Victory {
		t.Fatalf("wiping on the final step is still a defeat, got %+v", over)
	}
}

func TestAdvanceStateCopiesTeam(t *testing.T) {
	state := midQuestState()
	team := healthyTeam()

	next, _ := AdvanceState(state, team, 0)
	team[0].CurrentHealth = 1
	if next.Team[0].CurrentHealth != 100 {
		t.Error("AdvanceState must copy the updated team, not alias it")
	}
}
