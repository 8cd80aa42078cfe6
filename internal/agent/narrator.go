package agent

import (
	"errors"
	"strings"

	"github.com/wildtale-io/wildtale/internal/recovery"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// Narrator renders scenes and outcomes as prose.
type Narrator struct{}

func NewNarrator() *Narrator { return &Narrator{} }

func (*Narrator) Role() string { return RoleNarrator }

func (p *Narrator) Reason(view View) (Action, error) {
	if call, ok := view.Latest(isVoteCall); ok {
		return Action{Type: ActionVote, Emit: []protocol.Message{castBallot(view, call, protocol.EventEncounter)}}, nil
	}
	if msg, ok := view.Latest(isProposalRound); ok {
		return Action{Type: ActionMessage, Emit: []protocol.Message{takePosition(view, msg, acceptsStory)}}, nil
	}
	if _, brief, ok := effectiveNarrationBrief(view); ok {
		return Action{
			Type:        ActionGenerate,
			Prompt:      narrationPrompt(brief),
			MaxTokens:   narrationMaxTokens,
			Temperature: creativeTemperature,
		}, nil
	}
	return Action{Type: ActionWait}, nil
}

// effectiveNarrationBrief resolves what to narrate this turn. A brief
// seeded without content reads the event off the validator's verdict,
// or failing that the raw event draft.
func effectiveNarrationBrief(view View) (protocol.Message, protocol.NarrationBrief, bool) {
	_, freshBrief := view.Latest(isNarrationBrief)
	_, freshVerdict := view.Latest(isVerdict)
	if !freshBrief && !freshVerdict {
		return protocol.Message{}, protocol.NarrationBrief{}, false
	}
	req, ok := requestFor(view, isNarrationBrief)
	if !ok {
		return protocol.Message{}, protocol.NarrationBrief{}, false
	}
	brief := req.Payload.(protocol.NarrationBrief)
	if brief.Event == nil && brief.Outcome == nil {
		if vm, ok := requestFor(view, isVerdict); ok {
			ev := vm.Payload.(protocol.Verdict).Event
			brief.Event = &ev
		} else if dm, ok := requestFor(view, isEventDraft); ok {
			ev := dm.Payload.(protocol.EventDraft).Event
			brief.Event = &ev
		} else {
			return protocol.Message{}, protocol.NarrationBrief{}, false
		}
	}
	return req, brief, true
}

type narrationSchema struct {
	Narration string `json:"narration"`
}

func (p *Narrator) Interpret(view View, raw string) ([]protocol.Message, error) {
	req, brief, ok := effectiveNarrationBrief(view)
	if !ok {
		return nil, errors.New("no narration brief to answer")
	}

	parsed, err := recovery.ParseAs[narrationSchema](raw)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(parsed.Narration)
	if text == "" {
		text = fallbackNarration(brief)
	}
	return []protocol.Message{reply(req, view.Self.Name, protocol.NarrationText{Text: text})}, nil
}

// acceptsStory wants something to tell: a quest with a title and an
// objective.
func acceptsStory(p protocol.Proposal) bool {
	return p.Quest != nil && p.Quest.Title != "" && p.Quest.Objective != ""
}

// fallbackNarration covers a parse that succeeded structurally but came
// back without prose.
func fallbackNarration(b protocol.NarrationBrief) string {
	switch {
	case b.Outcome != nil && b.Outcome.Success:
		return "It works. The moment passes, and the road opens ahead."
	case b.Outcome != nil:
		return "It goes wrong. You regroup and look for the next opening."
	case b.Event != nil && b.Event.Description != "":
		return b.Event.Description
	default:
		return "The journey continues."
	}
}

func isNarrationBrief(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.NarrationBrief)
	return ok
}
