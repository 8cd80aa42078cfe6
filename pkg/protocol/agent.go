package protocol

import "slices"

// AgentSpec defines one agent's identity and bus-facing behavior.
type AgentSpec struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Expertise    []string `json:"expertise,omitempty"`
	VotingWeight float64  `json:"voting_weight,omitempty"`
	CanInitiate  bool     `json:"can_initiate,omitempty"`
}

// HasExpertise reports whether the agent declared the given topic.
// An agent with no declared expertise matches nothing.
func (s AgentSpec) HasExpertise(topic string) bool {
	return slices.Contains(s.Expertise, topic)
}

// Weight returns the agent's voting weight, defaulting to 1.0 when unset.
func (s AgentSpec) Weight() float64 {
	if s.VotingWeight <= 0 {
		return 1.0
	}
	return s.VotingWeight
}
