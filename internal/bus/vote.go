package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// consensusShare is the fraction of received weight the winning option
// must strictly exceed for consensus. Two of three unit-weight votes is
// 66.7% and does not reach it.
const consensusShare = 0.7

// VoteRequest describes one question put to the roster.
type VoteRequest struct {
	Topic    string
	Question string
	Options  []string
	Team     []protocol.Combatant
	Timeout  time.Duration
}

// Vote broadcasts the question to every registered agent, cycles them
// concurrently, and tallies the ballots that arrive before the deadline.
// A timeout is not an error: the tally covers the votes received, and
// agents who never answered fall out of the denominator.
func (o *Orchestrator) Vote(ctx context.Context, req VoteRequest) (protocol.VotingResult, error) {
	if req.Timeout <= 0 {
		return protocol.VotingResult{}, fmt.Errorf("orchestrator: vote needs a positive timeout")
	}

	call := protocol.Message{
		ID:        uuid.NewString(),
		From:      OrchestratorName,
		To:        protocol.Broadcast,
		Kind:      protocol.KindBroadcast,
		Priority:  protocol.PriorityCritical, // reach every agent regardless of expertise
		Topic:     req.Topic,
		Payload:   protocol.VoteCall{Question: req.Question, Options: req.Options, Team: req.Team},
		CreatedAt: time.Now().UTC(),
	}
	if err := o.bus.Publish(call); err != nil {
		return protocol.VotingResult{}, fmt.Errorf("orchestrator: vote call: %w", err)
	}

	// Rendezvous: every agent cycles in its own goroutine and drops its
	// ballot on a buffered channel the moment it finishes. The buffer
	// holds one slot per agent, so a straggler landing after the
	// deadline never blocks; its ballot is simply not read.
	names := o.bus.Agents()
	ballots := make(chan protocol.Vote, len(names))
	var wg sync.WaitGroup
	for _, name := range names {
		ag, ok := o.bus.Agent(name)
		if !ok {
			continue
		}
		inbox := o.bus.Drain(name)
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			res, err := ag.Cycle(ctx, inbox)
			if err != nil {
				o.logger.Warn("agent failed to vote", "agent", name, "error", err)
				return
			}
			for _, msg := range res.Emitted {
				if err := o.bus.Publish(msg); err != nil {
					o.logger.Warn("ballot publish failed", "agent", name, "error", err)
					continue
				}
				if b, ok := msg.Payload.(protocol.Ballot); ok && msg.ReplyTo == call.ID {
					ballots <- b.Vote
				}
			}
		}(name)
	}

	allVoted := make(chan struct{})
	go func() {
		wg.Wait()
		close(allVoted)
	}()

	deadline := time.NewTimer(req.Timeout)
	defer deadline.Stop()

	select {
	case <-allVoted:
	case <-deadline.C:
		o.logger.Info("vote timed out, tallying partial result", "topic", req.Topic)
	case <-ctx.Done():
		return protocol.VotingResult{}, fmt.Errorf("orchestrator: vote cancelled: %w", ctx.Err())
	}

	var votes []protocol.Vote
	for {
		select {
		case v := <-ballots:
			votes = append(votes, v)
			continue
		default:
		}
		break
	}

	result := Tally(votes)
	o.logger.Info("vote tallied",
		"topic", req.Topic,
		"winner", result.Winner,
		"consensus", result.Consensus,
		"received", result.Received,
	)
	return result, nil
}

// Tally derives a VotingResult from received votes. The winner is the
// option with the highest Σ(confidence×weight), ties breaking to the
// lexicographically smallest option; consensus holds iff the winner's
// Σweight strictly exceeds 70% of the weight across received votes.
func Tally(votes []protocol.Vote) protocol.VotingResult {
	if len(votes) == 0 {
		return protocol.VotingResult{}
	}

	scores := make(map[string]float64)
	weights := make(map[string]float64)
	totalWeight := 0.0
	for _, v := range votes {
		scores[v.Choice] += v.Confidence * v.Weight
		weights[v.Choice] += v.Weight
		totalWeight += v.Weight
	}

	options := make([]string, 0, len(scores))
	for opt := range scores {
		options = append(options, opt)
	}
	sort.Strings(options)

	winner := options[0]
	for _, opt := range options[1:] {
		if scores[opt] > scores[winner] {
			winner = opt
		}
	}

	return protocol.VotingResult{
		Winner:          winner,
		Consensus:       weights[winner] > consensusShare*totalWeight,
		TotalConfidence: scores[winner],
		Received:        len(votes),
	}
}
