package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wildtale-io/wildtale/internal/agent"
	"github.com/wildtale-io/wildtale/internal/analysis"
	"github.com/wildtale-io/wildtale/internal/rules"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// StartResult is what a freshly started session hands the caller: the
// agreed quest and the identifiers every later call derives from.
type StartResult struct {
	SessionID string         `json:"session_id"`
	Seed      int64          `json:"seed"`
	Quest     protocol.Quest `json:"quest"`
	Agreed    bool           `json:"agreed"`
}

// StartSession drafts a quest for the team and runs the quest accord
// over it. A zero seed is replaced with a time-derived one; the resolved
// seed is returned so the session stays replayable.
func (s *Service) StartSession(ctx context.Context, team []protocol.Combatant, style string, seed int64) (*StartResult, error) {
	if len(team) == 0 {
		return nil, errors.New("game: start session: team is empty")
	}
	for _, c := range team {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("game: start session: %w", err)
		}
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	session := uuid.NewString()

	orch, err := s.assemble(session)
	if err != nil {
		return nil, err
	}

	styleName, styleNotes := s.resolveStyle(style)
	brief := protocol.QuestBrief{
		Style:       styleName,
		StyleNotes:  styleNotes,
		TeamSummary: analysis.DescribeTeam(team),
		LoreHints:   s.loreHints(ctx, team),
	}
	res, err := orch.RunPipeline(ctx,
		[]string{agent.RoleQuestDesigner},
		[]protocol.Message{request(agent.RoleQuestDesigner, protocol.TopicQuestDesign, brief)},
	)
	if err != nil {
		return nil, fmt.Errorf("game: start session: %w", err)
	}
	draft, ok := lastPayload[protocol.QuestDraft](res.Messages)
	if !ok {
		return nil, errors.New("game: start session: quest designer produced no draft")
	}
	quest := draft.Quest

	proposal := agent.NewQuestDesigner().Propose(agent.RoleQuestDesigner, quest)
	accord, err := orch.Negotiate(ctx, protocol.TopicQuestAccord,
		[]string{agent.RoleQuestDesigner, agent.RoleValidator, agent.RoleNarrator},
		[]protocol.Proposal{proposal},
		s.accordRounds,
	)
	if err != nil {
		return nil, fmt.Errorf("game: start session: %w", err)
	}
	if accord.Proposal.Quest != nil {
		quest = *accord.Proposal.Quest
		quest.Normalize()
	}

	s.logger.Info("session started",
		"session", session,
		"quest", quest.Title,
		"agreed", accord.Agreed,
		"rounds", accord.Rounds,
		"seed", seed,
	)
	return &StartResult{SessionID: session, Seed: seed, Quest: quest, Agreed: accord.Agreed}, nil
}

// NewSession assembles the initial caller-held state for a started
// session. The team is copied; the caller's slice stays untouched.
func NewSession(start *StartResult, team []protocol.Combatant, style string) protocol.GameState {
	return protocol.GameState{
		SessionID: start.SessionID,
		Style:     style,
		Team:      slices.Clone(team),
		Seed:      start.Seed,
		Quest:     start.Quest,
	}
}

// AdvanceState derives the next session state: step advanced, seed
// rotated one generator step, score delta applied. Pure; neither input
// is mutated. The returned GameOver reports defeat when the team is
// wiped, victory when the quest's target step count is reached.
func AdvanceState(state protocol.GameState, updatedTeam []protocol.Combatant, scoreDelta int) (protocol.GameState, protocol.GameOver) {
	next := state
	next.Team = slices.Clone(updatedTeam)
	next.CurrentStep = state.CurrentStep + 1
	next.Seed = rules.NextSeed(state.Seed)
	next.CumulativeScore = state.CumulativeScore + scoreDelta

	switch {
	case next.TeamWiped():
		return next, protocol.GameOver{Over: true, Reason: "the whole team has fainted"}
	case next.CurrentStep >= state.Quest.TargetStepCount:
		return next, protocol.GameOver{Over: true, Victory: true, Reason: "quest complete"}
	}
	return next, protocol.GameOver{}
}
