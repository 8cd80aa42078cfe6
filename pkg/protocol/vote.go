package protocol

import (
	"errors"
	"fmt"
)

// Vote is one agent's weighted position on a broadcast question.
type Vote struct {
	AgentName  string  `json:"agent_name"`
	Choice     string  `json:"choice"`
	Confidence float64 `json:"confidence"` // in [0,1]
	Weight     float64 `json:"weight"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Validate checks the vote's numeric bounds.
func (v Vote) Validate() error {
	if v.AgentName == "" {
		return errors.New("vote agent name is empty")
	}
	if v.Choice == "" {
		return fmt.Errorf("vote from %s has no choice", v.AgentName)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("vote from %s: confidence %v outside [0,1]", v.AgentName, v.Confidence)
	}
	if v.Weight <= 0 {
		return fmt.Errorf("vote from %s: weight %v is not positive", v.AgentName, v.Weight)
	}
	return nil
}

// VotingResult is derived from a tally, never stored. Consensus holds iff
// the winning option's weight exceeds 70% of the weight across received
// votes; agents that never voted fall out of the denominator.
type VotingResult struct {
	Winner          string  `json:"winner"`
	Consensus       bool    `json:"consensus"`
	TotalConfidence float64 `json:"total_confidence"` // winner's Σ(confidence×weight)
	Received        int     `json:"received"`
}

// Proposal is one participant's negotiation position. The quest is the
// only artifact negotiated in this system.
type Proposal struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Summary string `json:"summary"`
	Quest   *Quest `json:"quest,omitempty"`
}

// NegotiationResult always carries a proposal: the agreed one, or the
// first initial proposal as the deterministic fallback when rounds ran out.
type NegotiationResult struct {
	Proposal Proposal `json:"proposal"`
	Agreed   bool     `json:"agreed"`
	Rounds   int      `json:"rounds"`
}
