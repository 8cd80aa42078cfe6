package bus

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// Negotiate runs a bounded multi-round negotiation over the initial
// proposals. Each round sends the current proposal set to every
// participant; participants answer with an agreement flag, the proposal
// they support, and optionally a revision that joins the pool next
// round. Consensus requires at least 70% of participants agreeing on
// the most-supported proposal. Rounds, not wall-clock time, bound the
// protocol: after maxRounds without consensus the first initial
// proposal is returned with Agreed=false. The result is never nil.
func (o *Orchestrator) Negotiate(ctx context.Context, topic string, participants []string, initial []protocol.Proposal, maxRounds int) (*protocol.NegotiationResult, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("orchestrator: negotiation needs participants")
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("orchestrator: negotiation needs an initial proposal")
	}
	if maxRounds < 1 {
		maxRounds = 1
	}
	for _, name := range participants {
		if _, ok := o.bus.Agent(name); !ok {
			return nil, fmt.Errorf("orchestrator: negotiation participant %q is not registered", name)
		}
	}

	needed := int(math.Ceil(consensusShare * float64(len(participants))))
	proposals := append([]protocol.Proposal(nil), initial...)

	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("orchestrator: negotiation cancelled: %w", err)
		}

		positions, err := o.negotiationRound(ctx, topic, participants, round, proposals)
		if err != nil {
			return nil, err
		}

		support := make(map[string]int)
		for _, pos := range positions {
			if pos.Agree {
				support[pos.Supports]++
			}
		}
		leadID, leadCount := mostSupported(support)
		if leadCount >= needed {
			if p, ok := findProposal(proposals, leadID); ok {
				o.logger.Info("negotiation reached consensus",
					"topic", topic,
					"round", round,
					"proposal", p.ID,
					"support", leadCount,
				)
				return &protocol.NegotiationResult{Proposal: p, Agreed: true, Rounds: round}, nil
			}
		}

		// Revisions replace the reviser's earlier proposal in the pool.
		for _, pos := range positions {
			if pos.Revised != nil {
				proposals = replaceProposal(proposals, *pos.Revised)
			}
		}
	}

	o.logger.Info("negotiation exhausted rounds, falling back to first proposal",
		"topic", topic,
		"rounds", maxRounds,
	)
	return &protocol.NegotiationResult{Proposal: initial[0], Agreed: false, Rounds: maxRounds}, nil
}

// negotiationRound sends the proposal set to each participant and
// collects their positions. A participant failing its cycle simply
// contributes no position this round.
func (o *Orchestrator) negotiationRound(ctx context.Context, topic string, participants []string, round int, proposals []protocol.Proposal) ([]protocol.Position, error) {
	payload := protocol.ProposalRound{Round: round, Proposals: proposals}

	var positions []protocol.Position
	for _, name := range participants {
		msg := protocol.Message{
			ID:        uuid.NewString(),
			From:      OrchestratorName,
			To:        name,
			Kind:      protocol.KindNegotiation,
			Priority:  protocol.PriorityHigh,
			Topic:     topic,
			Payload:   payload,
			CreatedAt: time.Now().UTC(),
		}
		if err := o.bus.Publish(msg); err != nil {
			return nil, fmt.Errorf("orchestrator: negotiation round %d: %w", round, err)
		}

		ag, _ := o.bus.Agent(name)
		res, err := ag.Cycle(ctx, o.bus.Drain(name))
		if err != nil {
			o.logger.Warn("participant failed negotiation round",
				"agent", name,
				"round", round,
				"error", err,
			)
			continue
		}
		for _, emitted := range res.Emitted {
			if err := o.bus.Publish(emitted); err != nil {
				return nil, fmt.Errorf("orchestrator: negotiation round %d: %w", round, err)
			}
			if pos, ok := emitted.Payload.(protocol.Position); ok && pos.Round == round {
				positions = append(positions, pos)
			}
		}
	}
	return positions, nil
}

// mostSupported picks the proposal id with the most agreeing
// participants, ties breaking to the lexicographically smallest id.
func mostSupported(support map[string]int) (string, int) {
	ids := make([]string, 0, len(support))
	for id := range support {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best, count := "", 0
	for _, id := range ids {
		if support[id] > count {
			best, count = id, support[id]
		}
	}
	return best, count
}

func findProposal(proposals []protocol.Proposal, id string) (protocol.Proposal, bool) {
	for _, p := range proposals {
		if p.ID == id {
			return p, true
		}
	}
	return protocol.Proposal{}, false
}

// replaceProposal swaps out the reviser's previous proposal, or appends
// when they had none in the pool.
func replaceProposal(proposals []protocol.Proposal, revised protocol.Proposal) []protocol.Proposal {
	for i, p := range proposals {
		if p.From == revised.From {
			proposals[i] = revised
			return proposals
		}
	}
	return append(proposals, revised)
}
