package agent

import (
	"errors"
	"fmt"
	"slices"

	"github.com/wildtale-io/wildtale/internal/analysis"
	"github.com/wildtale-io/wildtale/internal/rules"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// Validator reviews generated content against the mechanical contract.
// It is the only policy that consults the rules engine and the only one
// that never calls the completion service; verdicts are computed during
// Reason (pure lookups) and published by Act.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

func (*Validator) Role() string { return RoleValidator }

func (p *Validator) Reason(view View) (Action, error) {
	if call, ok := view.Latest(isVoteCall); ok {
		return Action{Type: ActionVote, Emit: []protocol.Message{castBallot(view, call, protocol.EventEncounter)}}, nil
	}
	if msg, ok := view.Latest(isProposalRound); ok {
		return Action{Type: ActionMessage, Emit: []protocol.Message{takePosition(view, msg, acceptsNormalizedQuest)}}, nil
	}
	if req, rr, ok := assembledReview(view); ok {
		verdict, teamBroken := p.review(rr)
		return Action{
			Type:         ActionValidate,
			Emit:         []protocol.Message{reply(req, view.Self.Name, verdict)},
			StopPipeline: teamBroken,
		}, nil
	}
	return Action{Type: ActionWait}, nil
}

// assembledReview fills a review request seeded without content from the
// designer drafts accumulated over the pipeline. No fresh material or no
// event yet means nothing to review this turn.
func assembledReview(view View) (protocol.Message, protocol.ReviewRequest, bool) {
	_, freshReq := view.Latest(isReviewRequest)
	_, freshEvent := view.Latest(isEventDraft)
	_, freshChoices := view.Latest(isChoiceSet)
	if !freshReq && !freshEvent && !freshChoices {
		return protocol.Message{}, protocol.ReviewRequest{}, false
	}
	req, ok := requestFor(view, isReviewRequest)
	if !ok {
		return protocol.Message{}, protocol.ReviewRequest{}, false
	}
	rr := req.Payload.(protocol.ReviewRequest)
	if rr.Event.Title == "" {
		dm, ok := requestFor(view, isEventDraft)
		if !ok {
			return protocol.Message{}, protocol.ReviewRequest{}, false
		}
		rr.Event = dm.Payload.(protocol.EventDraft).Event
	}
	if len(rr.Choices) == 0 {
		if cm, ok := requestFor(view, isChoiceSet); ok {
			rr.Choices = cm.Payload.(protocol.ChoiceSet).Choices
		}
	}
	return req, rr, true
}

func (*Validator) Interpret(View, string) ([]protocol.Message, error) {
	return nil, errors.New("validator never generates")
}

// review downgrades out-of-contract content instead of aborting: the
// verdict carries the repaired event and choices plus one warning per
// defect. The second result reports a team too broken for any
// downstream resolution, which stops the pipeline.
func (p *Validator) review(rr protocol.ReviewRequest) (protocol.Verdict, bool) {
	event := rr.Event
	event.EnemyTypes = slices.Clone(rr.Event.EnemyTypes)
	choices := slices.Clone(rr.Choices)
	var warnings []string

	status := analysis.AssessTeam(rr.Team)
	teamBroken := status.Standing == 0
	if teamBroken {
		warnings = append(warnings, "no standing team member; event cannot be resolved")
	}

	if !protocol.KnownDifficulty(event.Difficulty) {
		warnings = append(warnings, fmt.Sprintf("difficulty %q out of contract, using normal", event.Difficulty))
	}
	switch event.EventType {
	case protocol.EventBattle, protocol.EventEncounter, protocol.EventExploration:
	default:
		warnings = append(warnings, fmt.Sprintf("event type %q out of contract, using encounter", event.EventType))
	}
	for i, t := range event.EnemyTypes {
		if !rules.KnownType(t) {
			warnings = append(warnings, fmt.Sprintf("enemy type %q is not on the chart, using normal", t))
			event.EnemyTypes[i] = "normal"
		}
	}
	if event.EventType == protocol.EventBattle && event.EnemyPower <= 0 {
		warnings = append(warnings, "battle event without enemy power, using 1")
	}
	event.Normalize()

	if event.EventType == protocol.EventBattle && !teamBroken {
		active, _ := firstStanding(rr.Team)
		threat := analysis.AssessThreat(active, event.EnemyPower, event.EnemyTypes)
		if threat.Level == analysis.ThreatSevere && threat.PowerGap >= 4 {
			warnings = append(warnings, fmt.Sprintf("enemy power %.1f overwhelms the active member", event.EnemyPower))
		}
	}

	if len(choices) != choiceCount {
		warnings = append(warnings, fmt.Sprintf("choice count %d out of contract, using %d", len(choices), choiceCount))
		if len(choices) > choiceCount {
			choices = choices[:choiceCount]
		}
		for len(choices) < choiceCount {
			choices = append(choices, fallbackChoice(len(choices), event))
		}
	}
	hasEnemy := event.EnemyPower > 0
	for i, c := range choices {
		if (c.Action == protocol.ActionBattle || c.Action == protocol.ActionCapture) && !hasEnemy {
			warnings = append(warnings, fmt.Sprintf("choice %d action %q without an enemy, using explore", i+1, c.Action))
			choices[i].Action = protocol.ActionExplore
		}
	}
	choices = protocol.NormalizeChoices(choices)

	return protocol.Verdict{
		Valid:    len(warnings) == 0,
		Warnings: warnings,
		Event:    event,
		Choices:  choices,
	}, teamBroken
}

func firstStanding(team []protocol.Combatant) (protocol.Combatant, bool) {
	for _, c := range team {
		if !c.Fainted() {
			return c, true
		}
	}
	return protocol.Combatant{}, false
}

func isReviewRequest(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.ReviewRequest)
	return ok
}

func isVerdict(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.Verdict)
	return ok
}
