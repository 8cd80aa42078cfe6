package agent

import (
	"context"
	"fmt"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// Result is one cycle's output, handed back to the orchestrator for
// publishing.
type Result struct {
	Emitted      []protocol.Message
	StopPipeline bool
}

// Cycle runs one perceive → reason → act pass over an inbox snapshot.
// Emitted messages are returned, never published here. Cycle is not safe
// for concurrent use on the same agent; the orchestrator runs at most
// one cycle per agent at a time.
func (a *Agent) Cycle(ctx context.Context, inbox []protocol.Message) (Result, error) {
	defer func() { a.phase = PhaseIdle }()

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("agent %s: context cancelled: %w", a.Spec.Name, err)
	}

	a.phase = PhasePerceiving
	fresh := make([]protocol.Message, 0, len(inbox))
	for _, msg := range inbox {
		if a.memory.Remember(msg) {
			fresh = append(fresh, msg)
		}
	}

	a.phase = PhaseReasoning
	view := View{Self: a.Spec, Fresh: fresh, Memory: a.memory.Snapshot()}
	action, err := a.Policy.Reason(view)
	if err != nil {
		return Result{}, fmt.Errorf("agent %s: reason: %w", a.Spec.Name, err)
	}

	a.Logger.Debug("agent reasoned",
		"agent", a.Spec.Name,
		"action", string(action.Type),
		"fresh", len(fresh),
	)

	a.phase = PhaseActing
	return a.act(ctx, view, action)
}
