package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// OrchestratorName is the bus name the orchestrator answers under.
// Responses to its briefs are addressed here.
const OrchestratorName = "orchestrator"

// Orchestrator drives agent cycles over a bus: sequential pipelines,
// isolated parallel rounds, voting and negotiation. One orchestrator is
// constructed per session and owned by the caller; there are no shared
// globals.
type Orchestrator struct {
	bus    *Bus
	logger *slog.Logger

	mu        sync.Mutex
	collected []protocol.Message
}

// NewOrchestrator wires an orchestrator to a bus and registers it as
// the sink for messages addressed to OrchestratorName.
func NewOrchestrator(b *Bus, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{bus: b, logger: logger}
	if err := b.RegisterSink(OrchestratorName, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Bus returns the underlying bus.
func (o *Orchestrator) Bus() *Bus { return o.bus }

// Deliver implements Sink: responses addressed to the orchestrator are
// collected for the running operation.
func (o *Orchestrator) Deliver(msg protocol.Message) {
	o.mu.Lock()
	o.collected = append(o.collected, msg)
	o.mu.Unlock()
}

// takeCollected returns and clears the messages delivered to the
// orchestrator since the last call.
func (o *Orchestrator) takeCollected() []protocol.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.collected
	o.collected = nil
	return out
}

// PipelineResult is the outcome of a sequential pipeline run.
type PipelineResult struct {
	// Messages holds every message emitted across the stages, in stage
	// order.
	Messages []protocol.Message
	// Stopped reports that a stage short-circuited the remainder.
	Stopped bool
	// StoppedAt names the stage that stopped the pipeline.
	StoppedAt string
}

// RunPipeline runs the named agents strictly in sequence. Seed messages
// are published first; each stage perceives its drained mailbox plus the
// accumulated emissions of every prior stage, and its own emissions are
// published before the next stage runs. A stage setting the stop flag
// short-circuits the rest.
func (o *Orchestrator) RunPipeline(ctx context.Context, names []string, seed []protocol.Message) (*PipelineResult, error) {
	for _, msg := range seed {
		if err := o.bus.Publish(msg); err != nil {
			return nil, fmt.Errorf("orchestrator: seed pipeline: %w", err)
		}
	}

	result := &PipelineResult{}
	var carried []protocol.Message

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("orchestrator: pipeline cancelled at %s: %w", name, err)
		}
		ag, ok := o.bus.Agent(name)
		if !ok {
			return nil, fmt.Errorf("orchestrator: pipeline stage %q is not registered", name)
		}

		inbox := append(o.bus.Drain(name), carried...)
		res, err := ag.Cycle(ctx, inbox)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: pipeline stage %s: %w", name, err)
		}

		for _, msg := range res.Emitted {
			if err := o.bus.Publish(msg); err != nil {
				return nil, fmt.Errorf("orchestrator: pipeline stage %s: %w", name, err)
			}
		}
		carried = append(carried, res.Emitted...)
		result.Messages = append(result.Messages, res.Emitted...)

		if res.StopPipeline {
			result.Stopped = true
			result.StoppedAt = name
			o.logger.Info("pipeline stopped", "stage", name)
			break
		}
	}
	return result, nil
}

// RoundResult is the outcome of one parallel round.
type RoundResult struct {
	// Emitted holds every message published after the round completed,
	// grouped by agent in name order but unordered between agents.
	Emitted []protocol.Message
	// Failed maps agent names to their cycle errors. A failed agent
	// contributes no emissions; the round itself still completes.
	Failed map[string]error
}

// RunRound cycles every registered agent concurrently on a snapshot of
// its mailbox. Emissions are held back until all agents finish, so
// nothing one agent says in a round is visible to another until the
// round is over.
func (o *Orchestrator) RunRound(ctx context.Context) (*RoundResult, error) {
	names := o.bus.Agents()

	type outcome struct {
		name    string
		emitted []protocol.Message
		err     error
	}

	outcomes := make([]outcome, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		ag, ok := o.bus.Agent(name)
		if !ok {
			continue
		}
		inbox := o.bus.Drain(name)
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			res, err := ag.Cycle(ctx, inbox)
			outcomes[i] = outcome{name: name, emitted: res.Emitted, err: err}
		}(i, name)
	}
	wg.Wait()

	result := &RoundResult{}
	for _, oc := range outcomes {
		if oc.err != nil {
			if result.Failed == nil {
				result.Failed = make(map[string]error)
			}
			result.Failed[oc.name] = oc.err
			o.logger.Warn("agent failed in round", "agent", oc.name, "error", oc.err)
			continue
		}
		for _, msg := range oc.emitted {
			if err := o.bus.Publish(msg); err != nil {
				return nil, fmt.Errorf("orchestrator: round publish from %s: %w", oc.name, err)
			}
		}
		result.Emitted = append(result.Emitted, oc.emitted...)
	}
	return result, nil
}
