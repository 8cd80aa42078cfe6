package agent

import "github.com/wildtale-io/wildtale/pkg/protocol"

const defaultMemoryCapacity = 32

// Memory is a bounded ring of messages an agent has perceived,
// deduplicated by message ID. Oldest entries fall off beyond capacity;
// dedup tracks retained entries only, so an evicted ID can be stored
// again. Agents are never the system of record for game state — memory
// only shapes reasoning.
type Memory struct {
	capacity int
	entries  []protocol.Message
	seen     map[string]struct{}
}

// NewMemory creates a ring holding at most capacity messages.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &Memory{
		capacity: capacity,
		entries:  make([]protocol.Message, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Remember stores msg unless its ID is already retained. It reports
// whether the message was new.
func (m *Memory) Remember(msg protocol.Message) bool {
	if _, dup := m.seen[msg.ID]; dup {
		return false
	}
	if len(m.entries) == m.capacity {
		delete(m.seen, m.entries[0].ID)
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:m.capacity-1]
	}
	m.entries = append(m.entries, msg)
	m.seen[msg.ID] = struct{}{}
	return true
}

// Len returns the number of retained messages.
func (m *Memory) Len() int { return len(m.entries) }

// Snapshot copies the retained messages, oldest first.
func (m *Memory) Snapshot() []protocol.Message {
	out := make([]protocol.Message, len(m.entries))
	copy(out, m.entries)
	return out
}
