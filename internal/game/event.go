package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/wildtale-io/wildtale/internal/agent"
	"github.com/wildtale-io/wildtale/internal/analysis"
	"github.com/wildtale-io/wildtale/internal/bus"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// AdvanceEvent produces the next step's event bundle: the roster votes
// on the event type, then the design pipeline generates, checks and
// narrates the event. The vote's winner is advisory; the validator's
// verdict is what the bundle carries.
func (s *Service) AdvanceEvent(ctx context.Context, state protocol.GameState) (*protocol.EventBundle, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("game: advance event: %w", err)
	}
	if state.TeamWiped() {
		return nil, ErrTeamWiped
	}

	orch, err := s.assemble(state.SessionID)
	if err != nil {
		return nil, err
	}

	vote, err := orch.Vote(ctx, bus.VoteRequest{
		Topic:    protocol.TopicEventType,
		Question: "What kind of event should come next?",
		Options:  []string{protocol.EventBattle, protocol.EventEncounter, protocol.EventExploration},
		Team:     state.Team,
		Timeout:  s.voteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("game: advance event: %w", err)
	}

	_, styleNotes := s.resolveStyle(state.Style)
	summary := analysis.DescribeTeam(state.Team)
	seeds := []protocol.Message{
		request(agent.RoleEventDesigner, protocol.TopicEventDesign, protocol.EventBrief{
			Quest:       state.Quest,
			Step:        state.CurrentStep + 1,
			EventType:   vote.Winner,
			TeamSummary: summary,
			StyleNotes:  styleNotes,
			LoreHints:   s.loreHints(ctx, state.Team),
		}),
		request(agent.RoleChoiceDesigner, protocol.TopicChoiceDesign, protocol.ChoiceBrief{
			TeamSummary: summary,
		}),
		request(agent.RoleValidator, protocol.TopicValidation, protocol.ReviewRequest{
			Team: state.Team,
		}),
		request(agent.RoleNarrator, protocol.TopicNarration, protocol.NarrationBrief{
			TeamSummary: summary,
			StyleNotes:  styleNotes,
		}),
	}

	res, err := orch.RunPipeline(ctx, []string{
		agent.RoleEventDesigner,
		agent.RoleChoiceDesigner,
		agent.RoleValidator,
		agent.RoleNarrator,
	}, seeds)
	if err != nil {
		return nil, fmt.Errorf("game: advance event: %w", err)
	}
	if res.Stopped {
		return nil, fmt.Errorf("game: advance event: pipeline stopped at %s", res.StoppedAt)
	}

	verdict, ok := lastPayload[protocol.Verdict](res.Messages)
	if !ok {
		return nil, errors.New("game: advance event: validator produced no verdict")
	}
	for _, w := range verdict.Warnings {
		s.logger.Warn("content downgraded", "session", state.SessionID, "warning", w)
	}
	narration, ok := lastPayload[protocol.NarrationText](res.Messages)
	if !ok {
		return nil, errors.New("game: advance event: narrator produced no narration")
	}

	return &protocol.EventBundle{
		Event:     verdict.Event,
		Narration: narration.Text,
		Choices:   verdict.Choices,
	}, nil
}
