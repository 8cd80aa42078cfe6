package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wildtale-io/wildtale/internal/recovery"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// choiceCount is the contract: every event offers exactly three options.
const choiceCount = 3

// ChoiceDesigner produces the option set for an event.
type ChoiceDesigner struct{}

func NewChoiceDesigner() *ChoiceDesigner { return &ChoiceDesigner{} }

func (*ChoiceDesigner) Role() string { return RoleChoiceDesigner }

func (p *ChoiceDesigner) Reason(view View) (Action, error) {
	if call, ok := view.Latest(isVoteCall); ok {
		return Action{Type: ActionVote, Emit: []protocol.Message{castBallot(view, call, protocol.EventExploration)}}, nil
	}
	if _, brief, ok := effectiveChoiceBrief(view); ok {
		return Action{
			Type:        ActionGenerate,
			Prompt:      choicePrompt(brief),
			MaxTokens:   choiceMaxTokens,
			Temperature: structuredTemperature,
		}, nil
	}
	return Action{Type: ActionWait}, nil
}

// effectiveChoiceBrief resolves the brief the designer should answer
// this turn. A brief seeded without an event borrows it from the event
// designer's draft, which arrives over the pipeline. Nothing fresh, or
// no event to design against yet, means no work.
func effectiveChoiceBrief(view View) (protocol.Message, protocol.ChoiceBrief, bool) {
	_, freshBrief := view.Latest(isChoiceBrief)
	_, freshDraft := view.Latest(isEventDraft)
	if !freshBrief && !freshDraft {
		return protocol.Message{}, protocol.ChoiceBrief{}, false
	}
	req, ok := requestFor(view, isChoiceBrief)
	if !ok {
		return protocol.Message{}, protocol.ChoiceBrief{}, false
	}
	brief := req.Payload.(protocol.ChoiceBrief)
	if brief.Event.Title == "" {
		dm, ok := requestFor(view, isEventDraft)
		if !ok {
			return protocol.Message{}, protocol.ChoiceBrief{}, false
		}
		brief.Event = dm.Payload.(protocol.EventDraft).Event
	}
	return req, brief, true
}

type choiceSetSchema struct {
	Choices []choiceSchema `json:"choices"`
}

type choiceSchema struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Risk   string `json:"risk"`
}

func (p *ChoiceDesigner) Interpret(view View, raw string) ([]protocol.Message, error) {
	req, brief, ok := effectiveChoiceBrief(view)
	if !ok {
		return nil, errors.New("no choice brief to answer")
	}

	set, err := recovery.ParseAs[choiceSetSchema](raw)
	if err != nil {
		return nil, err
	}

	choices := make([]protocol.Choice, 0, choiceCount)
	for i, c := range set.Choices {
		if i == choiceCount {
			break
		}
		choices = append(choices, protocol.Choice{
			Label:  strings.TrimSpace(c.Label),
			Action: strings.ToLower(strings.TrimSpace(c.Action)),
			Risk:   strings.ToLower(strings.TrimSpace(c.Risk)),
		})
	}
	for len(choices) < choiceCount {
		choices = append(choices, fallbackChoice(len(choices), brief.Event))
	}
	choices = protocol.NormalizeChoices(choices)
	for i := range choices {
		choices[i].ID = fmt.Sprintf("choice-%d", i+1)
	}

	return []protocol.Message{reply(req, view.Self.Name, protocol.ChoiceSet{Choices: choices})}, nil
}

// fallbackChoice fills a short generated set. Battles pad with fight
// options; everything else stays exploratory.
func fallbackChoice(i int, event protocol.Event) protocol.Choice {
	if event.EventType == protocol.EventBattle {
		switch i {
		case 0:
			return protocol.Choice{Label: "Fight defensively", Action: protocol.ActionBattle, Risk: protocol.RiskSafe}
		case 1:
			return protocol.Choice{Label: "Press the attack", Action: protocol.ActionBattle, Risk: protocol.RiskModerate}
		default:
			return protocol.Choice{Label: "Go all out", Action: protocol.ActionBattle, Risk: protocol.RiskRisky}
		}
	}
	switch i {
	case 0:
		return protocol.Choice{Label: "Proceed carefully", Action: protocol.ActionExplore, Risk: protocol.RiskSafe}
	case 1:
		return protocol.Choice{Label: "Take a closer look", Action: protocol.ActionExplore, Risk: protocol.RiskModerate}
	default:
		return protocol.Choice{Label: "Push your luck", Action: protocol.ActionExplore, Risk: protocol.RiskRisky}
	}
}

func isChoiceBrief(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.ChoiceBrief)
	return ok
}

func isChoiceSet(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.ChoiceSet)
	return ok
}
