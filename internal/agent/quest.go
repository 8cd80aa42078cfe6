package agent

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/wildtale-io/wildtale/internal/recovery"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// Role names for the builtin policies.
const (
	RoleQuestDesigner  = "quest_designer"
	RoleEventDesigner  = "event_designer"
	RoleChoiceDesigner = "choice_designer"
	RoleValidator      = "validator"
	RoleNarrator       = "narrator"
)

// QuestDesigner drafts the framing quest and defends well-formed
// proposals in the quest accord.
type QuestDesigner struct{}

func NewQuestDesigner() *QuestDesigner { return &QuestDesigner{} }

func (*QuestDesigner) Role() string { return RoleQuestDesigner }

func (p *QuestDesigner) Reason(view View) (Action, error) {
	if call, ok := view.Latest(isVoteCall); ok {
		return Action{Type: ActionVote, Emit: []protocol.Message{castBallot(view, call, protocol.EventBattle)}}, nil
	}
	if msg, ok := view.Latest(isProposalRound); ok {
		return Action{Type: ActionMessage, Emit: []protocol.Message{takePosition(view, msg, acceptsNormalizedQuest)}}, nil
	}
	if req, ok := view.Latest(isQuestBrief); ok {
		brief := req.Payload.(protocol.QuestBrief)
		return Action{
			Type:        ActionGenerate,
			Prompt:      questPrompt(brief),
			MaxTokens:   questMaxTokens,
			Temperature: creativeTemperature,
		}, nil
	}
	return Action{Type: ActionWait}, nil
}

// questDraftSchema is the shape the designer asks the completion service
// for; field names follow the prompt, not the bus.
type questDraftSchema struct {
	Title           string `json:"title"`
	Objective       string `json:"objective"`
	Difficulty      string `json:"difficulty"`
	TargetStepCount int    `json:"targetStepCount"`
}

func (p *QuestDesigner) Interpret(view View, raw string) ([]protocol.Message, error) {
	req, ok := requestFor(view, isQuestBrief)
	if !ok {
		return nil, errors.New("no quest brief to answer")
	}
	draft, err := recovery.ParseAs[questDraftSchema](raw)
	if err != nil {
		return nil, err
	}
	quest := protocol.Quest{
		Title:           strings.TrimSpace(draft.Title),
		Objective:       strings.TrimSpace(draft.Objective),
		Difficulty:      strings.ToLower(strings.TrimSpace(draft.Difficulty)),
		TargetStepCount: draft.TargetStepCount,
	}
	quest.Normalize()
	return []protocol.Message{reply(req, view.Self.Name, protocol.QuestDraft{Quest: quest})}, nil
}

// Propose turns a drafted quest into a negotiation proposal.
func (p *QuestDesigner) Propose(from string, quest protocol.Quest) protocol.Proposal {
	quest.Normalize()
	return protocol.Proposal{
		ID:      uuid.NewString(),
		From:    from,
		Summary: quest.Title + ": " + quest.Objective,
		Quest:   &quest,
	}
}

func isQuestBrief(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.QuestBrief)
	return ok
}
