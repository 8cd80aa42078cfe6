// Package bus provides the per-session message transport and the
// orchestrator that drives agents over it. The bus validates every
// message at the boundary, records it for the trace collector, then
// routes: direct messages to one mailbox, broadcasts to every agent
// whose expertise intersects the topic (or everyone, at critical
// priority). Messages are immutable once published; the bus only
// appends.
package bus

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/wildtale-io/wildtale/internal/agent"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

const defaultMailboxSize = 64

// Recorder receives every message accepted by the bus. Recording is
// passive; a recorder never influences routing.
type Recorder interface {
	Record(msg protocol.Message)
}

// Sink receives direct messages for a non-agent participant, such as
// the orchestrator collecting responses.
type Sink interface {
	Deliver(msg protocol.Message)
}

// handle wraps a registered agent with its bounded mailbox.
type handle struct {
	agent   *agent.Agent
	mailbox []protocol.Message
}

// Bus is an in-process, per-session message router. Construct one per
// orchestration session; it is never shared across sessions.
type Bus struct {
	mu          sync.RWMutex
	agents      map[string]*handle
	sinks       map[string]Sink
	mailboxSize int
	recorder    Recorder
	logger      *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithMailboxSize bounds each agent's mailbox.
func WithMailboxSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.mailboxSize = n
		}
	}
}

// WithRecorder attaches a trace recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Bus) { b.recorder = r }
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		agents:      make(map[string]*handle),
		sinks:       make(map[string]Sink),
		mailboxSize: defaultMailboxSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds an agent under its spec name.
func (b *Bus) Register(a *agent.Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := a.Name()
	if name == "" {
		return fmt.Errorf("bus: agent has no name")
	}
	if _, exists := b.agents[name]; exists {
		return fmt.Errorf("bus: agent %q already registered", name)
	}
	if _, exists := b.sinks[name]; exists {
		return fmt.Errorf("bus: name %q already taken by a sink", name)
	}
	b.agents[name] = &handle{agent: a}
	b.logger.Debug("agent registered", "agent", name, "role", a.Policy.Role())
	return nil
}

// RegisterSink adds a named non-agent recipient.
func (b *Bus) RegisterSink(name string, s Sink) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.agents[name]; exists {
		return fmt.Errorf("bus: name %q already taken by an agent", name)
	}
	b.sinks[name] = s
	return nil
}

// Agent returns a registered agent by name.
func (b *Bus) Agent(name string) (*agent.Agent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.agents[name]
	if !ok {
		return nil, false
	}
	return h.agent, true
}

// Agents returns the registered agent names, sorted.
func (b *Bus) Agents() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.agents))
	for name := range b.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Publish validates msg, records it, and routes it. A direct message to
// an unknown recipient is an error; a broadcast reaches every other
// agent whose expertise intersects the topic, or every agent at
// critical priority.
func (b *Bus) Publish(msg protocol.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}

	if b.recorder != nil {
		b.recorder.Record(msg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.To != protocol.Broadcast {
		if h, ok := b.agents[msg.To]; ok {
			b.deliver(h, msg)
			return nil
		}
		if s, ok := b.sinks[msg.To]; ok {
			s.Deliver(msg)
			return nil
		}
		return fmt.Errorf("bus: unknown recipient %q", msg.To)
	}

	for name, h := range b.agents {
		if name == msg.From {
			continue
		}
		if msg.Priority != protocol.PriorityCritical && !h.agent.Spec.HasExpertise(msg.Topic) {
			continue
		}
		b.deliver(h, msg)
	}
	return nil
}

// deliver appends to a mailbox, evicting the oldest entry when full.
// Callers hold b.mu.
func (b *Bus) deliver(h *handle, msg protocol.Message) {
	if len(h.mailbox) >= b.mailboxSize {
		dropped := h.mailbox[0]
		h.mailbox = h.mailbox[1:]
		b.logger.Warn("mailbox full, dropping oldest message",
			"agent", h.agent.Name(),
			"dropped", dropped.ID,
		)
	}
	h.mailbox = append(h.mailbox, msg)
}

// Drain removes and returns an agent's queued messages, oldest first.
func (b *Bus) Drain(name string) []protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.agents[name]
	if !ok || len(h.mailbox) == 0 {
		return nil
	}
	out := h.mailbox
	h.mailbox = nil
	return out
}

// Pending returns the number of queued messages for an agent.
func (b *Bus) Pending(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if h, ok := b.agents[name]; ok {
		return len(h.mailbox)
	}
	return 0
}
