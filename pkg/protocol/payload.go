package protocol

import (
	"errors"
	"fmt"
)

// Topics pair with message kinds to select the payload variant carried.
const (
	TopicQuestDesign  = "quest_design"
	TopicEventDesign  = "event_design"
	TopicChoiceDesign = "choice_design"
	TopicValidation   = "validation"
	TopicNarration    = "narration"
	TopicEventType    = "event_type"
	TopicQuestAccord  = "quest_accord"
	TopicSession      = "session"
)

// Announcement carries session context to every agent.
// Variant for (broadcast, session).
type Announcement struct {
	Text string `json:"text"`
}

func (Announcement) PayloadKind() Kind { return KindBroadcast }

func (a Announcement) Validate() error {
	if a.Text == "" {
		return errors.New("announcement text is empty")
	}
	return nil
}

// QuestBrief asks the quest designer for a quest draft.
// Variant for (request, quest_design).
type QuestBrief struct {
	Style       string   `json:"style,omitempty"`
	StyleNotes  string   `json:"style_notes,omitempty"`
	TeamSummary string   `json:"team_summary"`
	LoreHints   []string `json:"lore_hints,omitempty"`
}

func (QuestBrief) PayloadKind() Kind { return KindRequest }

func (b QuestBrief) Validate() error {
	if b.TeamSummary == "" {
		return errors.New("quest brief has no team summary")
	}
	return nil
}

// QuestDraft is the quest designer's normalized answer.
// Variant for (response, quest_design).
type QuestDraft struct {
	Quest Quest `json:"quest"`
}

func (QuestDraft) PayloadKind() Kind { return KindResponse }

func (d QuestDraft) Validate() error {
	if d.Quest.Title == "" {
		return errors.New("quest draft has no title")
	}
	if !KnownDifficulty(d.Quest.Difficulty) {
		return fmt.Errorf("quest draft difficulty %q is unknown", d.Quest.Difficulty)
	}
	return nil
}

// EventBrief asks the event designer for the next event.
// Variant for (request, event_design).
type EventBrief struct {
	Quest       Quest    `json:"quest"`
	Step        int      `json:"step"`
	EventType   string   `json:"event_type,omitempty"` // winning vote, advisory
	TeamSummary string   `json:"team_summary"`
	StyleNotes  string   `json:"style_notes,omitempty"`
	LoreHints   []string `json:"lore_hints,omitempty"`
}

func (EventBrief) PayloadKind() Kind { return KindRequest }

func (b EventBrief) Validate() error {
	if b.Step < 0 {
		return fmt.Errorf("event brief step %d is negative", b.Step)
	}
	return nil
}

// EventDraft is the event designer's normalized answer.
// Variant for (response, event_design).
type EventDraft struct {
	Event Event `json:"event"`
}

func (EventDraft) PayloadKind() Kind { return KindResponse }

func (d EventDraft) Validate() error {
	if d.Event.Title == "" {
		return errors.New("event draft has no title")
	}
	if !KnownDifficulty(d.Event.Difficulty) {
		return fmt.Errorf("event draft difficulty %q is unknown", d.Event.Difficulty)
	}
	if d.Event.EnemyPower < 0 {
		return fmt.Errorf("event draft enemy power %v is negative", d.Event.EnemyPower)
	}
	return nil
}

// ChoiceBrief asks the choice designer for options against an event.
// The event may be left empty when the designer runs inside a pipeline:
// it then picks up the event from the preceding stage's draft.
// Variant for (request, choice_design).
type ChoiceBrief struct {
	Event       Event  `json:"event"`
	TeamSummary string `json:"team_summary"`
}

func (ChoiceBrief) PayloadKind() Kind { return KindRequest }

func (b ChoiceBrief) Validate() error {
	if b.TeamSummary == "" {
		return errors.New("choice brief has no team summary")
	}
	return nil
}

// ChoiceSet is the choice designer's normalized answer.
// Variant for (response, choice_design).
type ChoiceSet struct {
	Choices []Choice `json:"choices"`
}

func (ChoiceSet) PayloadKind() Kind { return KindResponse }

func (s ChoiceSet) Validate() error {
	if len(s.Choices) == 0 {
		return errors.New("choice set is empty")
	}
	for i, c := range s.Choices {
		if !KnownRisk(c.Risk) {
			return fmt.Errorf("choice %d risk %q is unknown", i, c.Risk)
		}
	}
	return nil
}

// ReviewRequest asks the validator to check an event and its choices
// against the current team. Variant for (request, validation).
type ReviewRequest struct {
	Event   Event       `json:"event"`
	Choices []Choice    `json:"choices"`
	Team    []Combatant `json:"team"`
}

func (ReviewRequest) PayloadKind() Kind { return KindRequest }

func (r ReviewRequest) Validate() error {
	if len(r.Team) == 0 {
		return errors.New("review request has no team")
	}
	return nil
}

// Verdict is the validator's answer: possibly-downgraded content plus
// warnings. Variant for (response, validation).
type Verdict struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings,omitempty"`
	Event    Event    `json:"event"`
	Choices  []Choice `json:"choices"`
}

func (Verdict) PayloadKind() Kind { return KindResponse }

func (v Verdict) Validate() error {
	if v.Event.Title == "" {
		return errors.New("verdict has no event")
	}
	return nil
}

// NarrationBrief asks the narrator for prose over an event or an
// outcome. Both may be empty inside a pipeline, where the narrator
// reads the event off the validator's verdict instead.
// Variant for (request, narration).
type NarrationBrief struct {
	Event       *Event   `json:"event,omitempty"`
	Outcome     *Outcome `json:"outcome,omitempty"`
	TeamSummary string   `json:"team_summary,omitempty"`
	StyleNotes  string   `json:"style_notes,omitempty"`
}

func (NarrationBrief) PayloadKind() Kind { return KindRequest }

func (NarrationBrief) Validate() error { return nil }

// NarrationText is the narrator's answer.
// Variant for (response, narration).
type NarrationText struct {
	Text string `json:"text"`
}

func (NarrationText) PayloadKind() Kind { return KindResponse }

func (n NarrationText) Validate() error {
	if n.Text == "" {
		return errors.New("narration text is empty")
	}
	return nil
}

// VoteCall broadcasts a question with its option set. The roster lets
// voters weigh the question against team condition.
// Variant for (broadcast, any vote topic).
type VoteCall struct {
	Question string      `json:"question"`
	Options  []string    `json:"options"`
	Team     []Combatant `json:"team,omitempty"`
}

func (VoteCall) PayloadKind() Kind { return KindBroadcast }

func (c VoteCall) Validate() error {
	if c.Question == "" {
		return errors.New("vote call has no question")
	}
	if len(c.Options) < 2 {
		return fmt.Errorf("vote call offers %d options, need at least 2", len(c.Options))
	}
	return nil
}

// Ballot carries one agent's vote back to the orchestrator.
// Variant for (vote, the call's topic).
type Ballot struct {
	Vote Vote `json:"vote"`
}

func (Ballot) PayloadKind() Kind { return KindVote }

func (b Ballot) Validate() error {
	return b.Vote.Validate()
}

// ProposalRound broadcasts the current proposals to all participants.
// Variant for (negotiation, quest_accord).
type ProposalRound struct {
	Round     int        `json:"round"`
	Proposals []Proposal `json:"proposals"`
}

func (ProposalRound) PayloadKind() Kind { return KindNegotiation }

func (r ProposalRound) Validate() error {
	if r.Round < 1 {
		return fmt.Errorf("proposal round %d is not positive", r.Round)
	}
	if len(r.Proposals) == 0 {
		return errors.New("proposal round has no proposals")
	}
	return nil
}

// Position is one participant's stance in a negotiation round.
// Variant for (negotiation, quest_accord).
type Position struct {
	Round    int       `json:"round"`
	Agree    bool      `json:"agree"`
	Supports string    `json:"supports"` // proposal id
	Revised  *Proposal `json:"revised,omitempty"`
}

func (Position) PayloadKind() Kind { return KindNegotiation }

func (p Position) Validate() error {
	if p.Round < 1 {
		return fmt.Errorf("position round %d is not positive", p.Round)
	}
	if p.Supports == "" {
		return errors.New("position supports no proposal")
	}
	return nil
}
