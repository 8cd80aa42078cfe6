// Package game is the inbound command surface: each call assembles a
// fresh caller-owned orchestrator over the builtin roster, runs the
// agents, and returns derived values. Session state is held by the
// caller; nothing here persists or mutates it.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wildtale-io/wildtale/internal/agent"
	"github.com/wildtale-io/wildtale/internal/bus"
	"github.com/wildtale-io/wildtale/internal/tracelog"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

const (
	defaultVoteTimeout  = 5 * time.Second
	defaultAccordRounds = 3
)

// ErrTeamWiped is returned when a call needs a standing team member and
// the session has none left.
var ErrTeamWiped = fmt.Errorf("game: no standing team member")

// StyleSource resolves a style slug to a pack name and prompt notes.
// Unknown slugs resolve to a neutral default.
type StyleSource interface {
	Resolve(slug string) (name, notes string)
}

// LoreSource supplies flavor hints for designer prompts. Hints are
// best-effort; an empty slice is always acceptable.
type LoreSource interface {
	Hints(ctx context.Context, team []protocol.Combatant) []string
}

// Service runs sessions. All fields are set at construction; the service
// itself is stateless across calls and safe for concurrent use.
type Service struct {
	completer agent.Completer
	styles    StyleSource
	lore      LoreSource
	traces    *tracelog.Collector
	logger    *slog.Logger

	voteTimeout  time.Duration
	accordRounds int
}

// Option configures a Service.
type Option func(*Service)

// WithStyles attaches a style pack source.
func WithStyles(s StyleSource) Option {
	return func(svc *Service) { svc.styles = s }
}

// WithLore attaches a lore hint source.
func WithLore(l LoreSource) Option {
	return func(svc *Service) { svc.lore = l }
}

// WithTraces attaches a trace collector; bus traffic is recorded under
// each call's session id.
func WithTraces(c *tracelog.Collector) Option {
	return func(svc *Service) { svc.traces = c }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(svc *Service) { svc.logger = logger }
}

// WithVoteTimeout bounds the event-type vote.
func WithVoteTimeout(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.voteTimeout = d
		}
	}
}

// WithAccordRounds bounds the quest negotiation.
func WithAccordRounds(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.accordRounds = n
		}
	}
}

// New creates a session service over the given completion provider.
func New(completer agent.Completer, opts ...Option) *Service {
	svc := &Service{
		completer:    completer,
		logger:       slog.Default(),
		voteTimeout:  defaultVoteTimeout,
		accordRounds: defaultAccordRounds,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type member struct {
	spec   protocol.AgentSpec
	policy agent.Policy
}

// roster is the fixed five-role cast every session runs with.
func roster() []member {
	return []member{
		{
			spec: protocol.AgentSpec{
				Name:        agent.RoleQuestDesigner,
				Role:        agent.RoleQuestDesigner,
				Expertise:   []string{protocol.TopicQuestDesign, protocol.TopicQuestAccord},
				CanInitiate: true,
			},
			policy: agent.NewQuestDesigner(),
		},
		{
			spec: protocol.AgentSpec{
				Name:         agent.RoleEventDesigner,
				Role:         agent.RoleEventDesigner,
				Expertise:    []string{protocol.TopicEventDesign, protocol.TopicEventType},
				VotingWeight: 1.1,
			},
			policy: agent.NewEventDesigner(),
		},
		{
			spec: protocol.AgentSpec{
				Name:      agent.RoleChoiceDesigner,
				Role:      agent.RoleChoiceDesigner,
				Expertise: []string{protocol.TopicChoiceDesign},
			},
			policy: agent.NewChoiceDesigner(),
		},
		{
			spec: protocol.AgentSpec{
				Name:         agent.RoleValidator,
				Role:         agent.RoleValidator,
				Expertise:    []string{protocol.TopicValidation, protocol.TopicQuestAccord},
				VotingWeight: 1.2,
			},
			policy: agent.NewValidator(),
		},
		{
			spec: protocol.AgentSpec{
				Name:         agent.RoleNarrator,
				Role:         agent.RoleNarrator,
				Expertise:    []string{protocol.TopicNarration, protocol.TopicQuestAccord},
				VotingWeight: 0.9,
			},
			policy: agent.NewNarrator(),
		},
	}
}

// RosterNames lists the builtin roster's role names.
func RosterNames() []string {
	members := roster()
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.spec.Name
	}
	return names
}

// assemble builds a fresh bus, roster and orchestrator for one call.
// Nothing is shared between sessions.
func (s *Service) assemble(session string) (*bus.Orchestrator, error) {
	opts := []bus.Option{bus.WithLogger(s.logger)}
	if s.traces != nil {
		opts = append(opts, bus.WithRecorder(s.traces.Session(session)))
	}
	b := bus.New(opts...)
	for _, m := range roster() {
		ag := agent.New(m.spec, m.policy,
			agent.WithCompleter(s.completer),
			agent.WithLogger(s.logger),
		)
		if err := b.Register(ag); err != nil {
			return nil, fmt.Errorf("game: assemble roster: %w", err)
		}
	}
	orch, err := bus.NewOrchestrator(b, s.logger)
	if err != nil {
		return nil, fmt.Errorf("game: assemble roster: %w", err)
	}
	return orch, nil
}

// request builds an orchestrator-addressed brief for one agent.
func request(to, topic string, payload protocol.Payload) protocol.Message {
	return protocol.Message{
		ID:               uuid.NewString(),
		From:             bus.OrchestratorName,
		To:               to,
		Kind:             protocol.KindRequest,
		Priority:         protocol.PriorityHigh,
		Topic:            topic,
		RequiresResponse: true,
		Payload:          payload,
		CreatedAt:        time.Now().UTC(),
	}
}

// lastPayload returns the newest payload of type T among the messages.
func lastPayload[T protocol.Payload](msgs []protocol.Message) (T, bool) {
	var out T
	found := false
	for _, m := range msgs {
		if v, ok := m.Payload.(T); ok {
			out = v
			found = true
		}
	}
	return out, found
}

func (s *Service) resolveStyle(slug string) (string, string) {
	if s.styles == nil {
		return "", ""
	}
	return s.styles.Resolve(slug)
}

func (s *Service) loreHints(ctx context.Context, team []protocol.Combatant) []string {
	if s.lore == nil {
		return nil
	}
	return s.lore.Hints(ctx, team)
}
