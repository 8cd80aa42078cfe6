// Package agent implements the perceive → reason → act loop shared by
// every narrative worker. Role behavior lives in a Policy; the loop
// itself only moves messages in, decisions out. Agents never publish —
// emitted messages ride on the cycle result and the orchestrator decides
// when they hit the bus.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// Phase tracks where an agent currently is in its cycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePerceiving Phase = "perceiving"
	PhaseReasoning  Phase = "reasoning"
	PhaseActing     Phase = "acting"
)

// ActionType is what a policy decided to do with its turn.
type ActionType string

const (
	// ActionWait ends the turn with no output.
	ActionWait ActionType = "wait"
	// ActionGenerate calls the completion service with the action's
	// prompt, then hands the raw text back to the policy's Interpret.
	ActionGenerate ActionType = "generate"
	// ActionValidate, ActionVote and ActionMessage emit the prepared
	// messages untouched.
	ActionValidate ActionType = "validate"
	ActionVote     ActionType = "vote"
	ActionMessage  ActionType = "message"
)

// Action is the outcome of Reason. Generate actions carry the prompt to
// complete; every other kind carries fully prepared outbound messages.
type Action struct {
	Type         ActionType
	Prompt       string
	MaxTokens    int
	Temperature  float64
	Emit         []protocol.Message
	StopPipeline bool
}

// View is the read-only context a policy reasons over: the agent's own
// spec, the messages first perceived this turn (oldest first), and a
// snapshot of bounded memory (oldest first, ending with this turn's).
type View struct {
	Self   protocol.AgentSpec
	Fresh  []protocol.Message
	Memory []protocol.Message
}

// Latest returns the newest message perceived this turn that matches.
// Policies act on fresh messages only, so a brief answered in an earlier
// cycle is not answered twice.
func (v View) Latest(match func(protocol.Message) bool) (protocol.Message, bool) {
	for i := len(v.Fresh) - 1; i >= 0; i-- {
		if match(v.Fresh[i]) {
			return v.Fresh[i], true
		}
	}
	return protocol.Message{}, false
}

// Lookback returns the newest remembered message that matches, reaching
// into earlier turns.
func (v View) Lookback(match func(protocol.Message) bool) (protocol.Message, bool) {
	for i := len(v.Memory) - 1; i >= 0; i-- {
		if match(v.Memory[i]) {
			return v.Memory[i], true
		}
	}
	return protocol.Message{}, false
}

// Completer is the slice of the completion provider the loop needs.
type Completer interface {
	Complete(ctx context.Context, req protocol.CompletionRequest) (*protocol.CompletionResponse, error)
}

// Policy supplies an agent's role behavior.
type Policy interface {
	// Role names the policy for logging and wiring.
	Role() string
	// Reason inspects the view and decides the turn's action. It must not
	// publish; prepared messages ride on the returned Action. Pure
	// rules-engine calls are legal here.
	Reason(view View) (Action, error)
	// Interpret turns raw completion text into outbound messages after a
	// generate action.
	Interpret(view View, raw string) ([]protocol.Message, error)
}

// Agent binds a spec, a policy and an optional completion service into
// one cycling worker.
type Agent struct {
	Spec      protocol.AgentSpec
	Policy    Policy
	Completer Completer
	Logger    *slog.Logger

	memory *Memory
	phase  Phase
}

// Option configures an Agent.
type Option func(*Agent)

// WithCompleter attaches the completion service used by generate actions.
func WithCompleter(c Completer) Option {
	return func(a *Agent) { a.Completer = c }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.Logger = logger }
}

// WithMemoryCapacity bounds the perception ring.
func WithMemoryCapacity(n int) Option {
	return func(a *Agent) { a.memory = NewMemory(n) }
}

// New creates an agent with sensible defaults.
func New(spec protocol.AgentSpec, policy Policy, opts ...Option) *Agent {
	a := &Agent{
		Spec:   spec,
		Policy: policy,
		Logger: slog.Default(),
		phase:  PhaseIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.memory == nil {
		a.memory = NewMemory(defaultMemoryCapacity)
	}
	return a
}

// Name returns the agent's bus name.
func (a *Agent) Name() string { return a.Spec.Name }

// Phase reports where the agent is in its cycle.
func (a *Agent) Phase() Phase { return a.phase }

// Remembered returns the number of messages currently retained.
func (a *Agent) Remembered() int { return a.memory.Len() }

func (a *Agent) act(ctx context.Context, view View, action Action) (Result, error) {
	switch action.Type {
	case ActionWait, "":
		return Result{StopPipeline: action.StopPipeline}, nil

	case ActionGenerate:
		if a.Completer == nil {
			return Result{}, fmt.Errorf("agent %s: generate action without a completion service", a.Spec.Name)
		}
		req := protocol.CompletionRequest{
			Prompt:      action.Prompt,
			MaxTokens:   action.MaxTokens,
			Temperature: action.Temperature,
		}
		resp, err := a.Completer.Complete(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("agent %s: completion: %w", a.Spec.Name, err)
		}
		a.Logger.Debug("completion received",
			"agent", a.Spec.Name,
			"text_len", len(resp.Text),
			"tokens", resp.Usage.TotalTokens(),
		)
		emitted, err := a.Policy.Interpret(view, resp.Text)
		if err != nil {
			return Result{}, fmt.Errorf("agent %s: interpret: %w", a.Spec.Name, err)
		}
		return Result{Emitted: emitted, StopPipeline: action.StopPipeline}, nil

	case ActionValidate, ActionVote, ActionMessage:
		return Result{Emitted: action.Emit, StopPipeline: action.StopPipeline}, nil

	default:
		return Result{}, fmt.Errorf("agent %s: unknown action type %q", a.Spec.Name, action.Type)
	}
}
