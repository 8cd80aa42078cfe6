package protocol

import (
	"errors"
	"fmt"
	"time"
)

// Broadcast is the recipient sentinel that addresses a message to every
// registered agent whose expertise intersects the message topic.
const Broadcast = "all"

// Kind classifies a message on the bus.
type Kind string

const (
	KindRequest     Kind = "request"
	KindResponse    Kind = "response"
	KindBroadcast   Kind = "broadcast"
	KindVote        Kind = "vote"
	KindNegotiation Kind = "negotiation"
)

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRequest, KindResponse, KindBroadcast, KindVote, KindNegotiation:
		return true
	}
	return false
}

// Priority marks delivery urgency. Critical broadcasts bypass expertise
// filtering and reach every registered agent.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Payload is a structured message body. The payload set is closed: one
// variant per kind/topic pair, each validating its own schema, so the bus
// never routes opaque records.
type Payload interface {
	// PayloadKind returns the message kind this payload is legal under.
	PayloadKind() Kind
	// Validate checks the payload's own schema.
	Validate() error
}

// Message is the fundamental unit of communication between agents.
// Messages are immutable once published; the bus only appends.
type Message struct {
	ID               string    `json:"id"`
	From             string    `json:"from"`
	To               string    `json:"to"` // agent name or Broadcast
	Kind             Kind      `json:"kind"`
	Priority         Priority  `json:"priority"`
	Topic            string    `json:"topic,omitempty"`
	ReplyTo          string    `json:"reply_to,omitempty"` // id of the request a response answers
	RequiresResponse bool      `json:"requires_response,omitempty"`
	Payload          Payload   `json:"payload,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Validate checks the envelope and its payload against the closed schema set.
func (m Message) Validate() error {
	if m.ID == "" {
		return errors.New("protocol: message id is empty")
	}
	if m.From == "" {
		return fmt.Errorf("protocol: message %s: from is empty", m.ID)
	}
	if m.To == "" {
		return fmt.Errorf("protocol: message %s: to is empty", m.ID)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("protocol: message %s: unknown kind %q", m.ID, m.Kind)
	}
	if !m.Priority.Valid() {
		return fmt.Errorf("protocol: message %s: unknown priority %q", m.ID, m.Priority)
	}
	if m.Kind == KindResponse && m.ReplyTo == "" {
		return fmt.Errorf("protocol: message %s: response without reply_to", m.ID)
	}
	if m.Kind == KindBroadcast && m.Topic == "" {
		return fmt.Errorf("protocol: message %s: broadcast without topic", m.ID)
	}
	if m.Payload == nil {
		return fmt.Errorf("protocol: message %s: payload is nil", m.ID)
	}
	if pk := m.Payload.PayloadKind(); pk != m.Kind {
		return fmt.Errorf("protocol: message %s: %s payload on %s message", m.ID, pk, m.Kind)
	}
	if err := m.Payload.Validate(); err != nil {
		return fmt.Errorf("protocol: message %s: %w", m.ID, err)
	}
	return nil
}
