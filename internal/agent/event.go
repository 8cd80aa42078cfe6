package agent

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/wildtale-io/wildtale/internal/recovery"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// EventDesigner turns the quest and the party's vote into the next event.
type EventDesigner struct{}

func NewEventDesigner() *EventDesigner { return &EventDesigner{} }

func (*EventDesigner) Role() string { return RoleEventDesigner }

func (p *EventDesigner) Reason(view View) (Action, error) {
	if call, ok := view.Latest(isVoteCall); ok {
		return Action{Type: ActionVote, Emit: []protocol.Message{castBallot(view, call, protocol.EventBattle)}}, nil
	}
	if req, ok := view.Latest(isEventBrief); ok {
		brief := req.Payload.(protocol.EventBrief)
		return Action{
			Type:        ActionGenerate,
			Prompt:      eventPrompt(brief),
			MaxTokens:   eventMaxTokens,
			Temperature: creativeTemperature,
		}, nil
	}
	return Action{Type: ActionWait}, nil
}

type eventDraftSchema struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	EventType   string   `json:"eventType"`
	EnemyName   string   `json:"enemyName"`
	EnemyPower  float64  `json:"enemyPower"`
	EnemyTypes  []string `json:"enemyTypes"`
	Difficulty  string   `json:"difficulty"`
}

func (p *EventDesigner) Interpret(view View, raw string) ([]protocol.Message, error) {
	req, ok := requestFor(view, isEventBrief)
	if !ok {
		return nil, errors.New("no event brief to answer")
	}
	draft, err := recovery.ParseAs[eventDraftSchema](raw)
	if err != nil {
		return nil, err
	}
	event := protocol.Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		EventType:   strings.ToLower(strings.TrimSpace(draft.EventType)),
		EnemyName:   strings.TrimSpace(draft.EnemyName),
		EnemyPower:  draft.EnemyPower,
		EnemyTypes:  lowerAll(draft.EnemyTypes),
		Difficulty:  strings.ToLower(strings.TrimSpace(draft.Difficulty)),
	}
	if event.Title == "" {
		event.Title = "A Turn in the Road"
	}
	event.Normalize()
	return []protocol.Message{reply(req, view.Self.Name, protocol.EventDraft{Event: event})}, nil
}

func isEventBrief(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.EventBrief)
	return ok
}

func isEventDraft(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.EventDraft)
	return ok
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.ToLower(strings.TrimSpace(s)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
