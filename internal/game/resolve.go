package game

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/wildtale-io/wildtale/internal/agent"
	"github.com/wildtale-io/wildtale/internal/analysis"
	"github.com/wildtale-io/wildtale/internal/rules"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// ResolveChoice settles one chosen option. Mechanics come exclusively
// from the rules engine under the state's seed; the narrator renders the
// outcome afterwards. A completion transport or parse failure fails the
// whole turn, so no partially narrated outcome is ever returned.
func (s *Service) ResolveChoice(ctx context.Context, state protocol.GameState, event protocol.Event, choice protocol.Choice) (*protocol.Resolution, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("game: resolve choice: %w", err)
	}
	active, idx := state.Active()
	if idx == -1 {
		return nil, ErrTeamWiped
	}

	var warnings []string
	risk, ok := rules.ParseRisk(choice.Risk)
	if !ok {
		risk = rules.RiskModerate
		warnings = append(warnings, fmt.Sprintf("risk %q out of contract, using moderate", choice.Risk))
	}
	difficulty, ok := rules.ParseDifficulty(event.Difficulty)
	if !ok {
		difficulty = rules.DifficultyNormal
		warnings = append(warnings, fmt.Sprintf("difficulty %q out of contract, using normal", event.Difficulty))
	}

	team := slices.Clone(state.Team)
	outcome := protocol.Outcome{Action: choice.Action}

	switch choice.Action {
	case protocol.ActionBattle:
		if event.EnemyPower <= 0 {
			outcome.Action = protocol.ActionExplore
			outcome.Success = true
			warnings = append(warnings, "battle without an enemy resolves as exploration")
			break
		}
		br, err := rules.ComputeBattle(active.Power(), event.EnemyPower, risk, state.Seed, difficulty)
		if err != nil {
			return nil, fmt.Errorf("game: resolve choice: %w", err)
		}
		outcome.Success = br.Success
		outcome.DamageDealt = br.DamageDealt
		outcome.ScoreDelta = br.ScoreDelta
		if !br.Success {
			hurt, err := rules.ApplyDamage(active, counterDamage(event, active))
			if err != nil {
				return nil, fmt.Errorf("game: resolve choice: %w", err)
			}
			team[idx] = hurt
		}

	case protocol.ActionCapture:
		if event.EnemyPower <= 0 {
			outcome.Action = protocol.ActionExplore
			outcome.Success = true
			warnings = append(warnings, "capture without an enemy resolves as exploration")
			break
		}
		cr, err := rules.ComputeCapture(event.EnemyPower, active.Power(), risk, state.Seed)
		if err != nil {
			return nil, fmt.Errorf("game: resolve choice: %w", err)
		}
		outcome.Success = cr.Success
		outcome.ScoreDelta = cr.ScoreDelta

	case protocol.ActionFlee, protocol.ActionExplore:
		outcome.Success = true

	default:
		outcome.Action = protocol.ActionExplore
		outcome.Success = true
		warnings = append(warnings, fmt.Sprintf("action %q out of contract, resolving as exploration", choice.Action))
	}
	outcome.Warnings = warnings

	narration, err := s.narrateOutcome(ctx, state, event, outcome, team)
	if err != nil {
		return nil, err
	}
	outcome.Narration = narration

	over := protocol.GameState{Team: team}.TeamWiped()
	return &protocol.Resolution{Outcome: outcome, UpdatedTeam: team, SessionOver: over}, nil
}

// narrateOutcome runs the narrator alone over the settled outcome.
func (s *Service) narrateOutcome(ctx context.Context, state protocol.GameState, event protocol.Event, outcome protocol.Outcome, team []protocol.Combatant) (string, error) {
	orch, err := s.assemble(state.SessionID)
	if err != nil {
		return "", err
	}
	_, styleNotes := s.resolveStyle(state.Style)
	brief := protocol.NarrationBrief{
		Event:       &event,
		Outcome:     &outcome,
		TeamSummary: analysis.DescribeTeam(team),
		StyleNotes:  styleNotes,
	}
	res, err := orch.RunPipeline(ctx,
		[]string{agent.RoleNarrator},
		[]protocol.Message{request(agent.RoleNarrator, protocol.TopicNarration, brief)},
	)
	if err != nil {
		return "", fmt.Errorf("game: resolve choice: %w", err)
	}
	text, ok := lastPayload[protocol.NarrationText](res.Messages)
	if !ok {
		return "", errors.New("game: resolve choice: narrator produced no narration")
	}
	return text.Text, nil
}

// counterDamage is the enemy's answer to a missed attack: a base strike
// from its power, scaled by its primary type against the defender.
func counterDamage(event protocol.Event, defender protocol.Combatant) float64 {
	attackType := "normal"
	if len(event.EnemyTypes) > 0 {
		attackType = event.EnemyTypes[0]
	}
	return (8 + 1.6*event.EnemyPower) * rules.TypeEffectiveness(attackType, defender.Types)
}
