package agent

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wildtale-io/wildtale/internal/analysis"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// guardedHealthPct is the average team health below which policies stop
// leaning into confrontation.
const guardedHealthPct = 0.5

// newMessage builds a publish-ready envelope.
func newMessage(from, to string, kind protocol.Kind, priority protocol.Priority, topic string, payload protocol.Payload) protocol.Message {
	return protocol.Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Kind:      kind,
		Priority:  priority,
		Topic:     topic,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// reply answers a request, carrying its topic and priority back.
func reply(req protocol.Message, from string, payload protocol.Payload) protocol.Message {
	msg := newMessage(from, req.From, protocol.KindResponse, req.Priority, req.Topic, payload)
	msg.ReplyTo = req.ID
	return msg
}

func isVoteCall(m protocol.Message) bool {
	_, ok := m.Payload.(protocol.VoteCall)
	return ok
}

func isProposalRound(m protocol.Message) bool {
	r, ok := m.Payload.(protocol.ProposalRound)
	return ok && len(r.Proposals) > 0
}

// requestFor finds the request a generate turn answers, preferring this
// turn's messages over remembered ones.
func requestFor(view View, match func(protocol.Message) bool) (protocol.Message, bool) {
	if msg, ok := view.Latest(match); ok {
		return msg, true
	}
	return view.Lookback(match)
}

// castBallot answers a vote call without a completion call: team
// condition decides first, the role's lean applies only while the team
// is fit to follow it.
func castBallot(view View, call protocol.Message, lean string) protocol.Message {
	vc, _ := call.Payload.(protocol.VoteCall)
	status := analysis.AssessTeam(vc.Team)

	choice, confidence, reasoning := lean, 0.7, "role preference"
	switch {
	case status.Standing == 0 || status.Critical:
		choice, confidence, reasoning = protocol.EventExploration, 0.9, "team cannot take another fight"
	case status.AverageHealthPct < guardedHealthPct:
		choice, confidence, reasoning = protocol.EventEncounter, 0.8, "team needs a quieter beat"
	}
	if len(vc.Options) > 0 && !slices.Contains(vc.Options, choice) {
		choice, confidence, reasoning = vc.Options[0], 0.5, "preferred option not offered"
	}

	ballot := protocol.Ballot{Vote: protocol.Vote{
		AgentName:  view.Self.Name,
		Choice:     choice,
		Confidence: confidence,
		Weight:     view.Self.Weight(),
		Reasoning:  reasoning,
	}}
	msg := newMessage(view.Self.Name, call.From, protocol.KindVote, call.Priority, call.Topic, ballot)
	msg.ReplyTo = call.ID
	return msg
}

// takePosition answers a proposal round: back the first proposal the
// acceptance check passes, otherwise back the lead proposal and attach a
// repaired revision of it.
func takePosition(view View, msg protocol.Message, accepts func(protocol.Proposal) bool) protocol.Message {
	round, _ := msg.Payload.(protocol.ProposalRound)
	for _, p := range round.Proposals {
		if accepts(p) {
			return position(view, msg, protocol.Position{
				Round:    round.Round,
				Agree:    true,
				Supports: p.ID,
			})
		}
	}

	lead := round.Proposals[0]
	revised := lead
	revised.ID = uuid.NewString()
	revised.From = view.Self.Name
	if lead.Quest != nil {
		q := *lead.Quest
		q.Normalize()
		revised.Quest = &q
	}
	return position(view, msg, protocol.Position{
		Round:    round.Round,
		Agree:    false,
		Supports: lead.ID,
		Revised:  &revised,
	})
}

func position(view View, req protocol.Message, pos protocol.Position) protocol.Message {
	msg := newMessage(view.Self.Name, req.From, protocol.KindNegotiation, req.Priority, req.Topic, pos)
	msg.ReplyTo = req.ID
	return msg
}

// acceptsNormalizedQuest is the shared negotiation check: a proposal is
// acceptable when its quest needs no repair.
func acceptsNormalizedQuest(p protocol.Proposal) bool {
	if p.Quest == nil {
		return false
	}
	normalized := *p.Quest
	normalized.Normalize()
	return *p.Quest == normalized
}
