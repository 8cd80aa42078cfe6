package bus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wildtale-io/wildtale/internal/agent"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// relayPolicy answers any fresh announcement with a narration response
// to the orchestrator, and records what it perceived each turn.
type relayPolicy struct {
	reply     string
	stop      bool
	broadcast bool
	perceived [][]protocol.Message
}

func (*relayPolicy) Role() string { return "relay" }

func (p *relayPolicy) Reason(view agent.View) (agent.Action, error) {
	p.perceived = append(p.perceived, view.Fresh)
	trigger, ok := view.Latest(func(m protocol.Message) bool {
		switch m.Payload.(type) {
		case protocol.Announcement, protocol.NarrationText:
			return m.From != view.Self.Name
		}
		return false
	})
	if !ok {
		return agent.Action{Type: agent.ActionWait}, nil
	}

	out := protocol.Message{
		ID:        uuid.NewString(),
		From:      view.Self.Name,
		To:        OrchestratorName,
		Kind:      protocol.KindResponse,
		Priority:  protocol.PriorityMedium,
		Topic:     trigger.Topic,
		ReplyTo:   trigger.ID,
		Payload:   protocol.NarrationText{Text: p.reply},
		CreatedAt: time.Now().UTC(),
	}
	if p.broadcast {
		out.To = protocol.Broadcast
		out.Kind = protocol.KindBroadcast
		out.ReplyTo = ""
		out.Payload = protocol.Announcement{Text: p.reply}
	}
	return agent.Action{Type: agent.ActionMessage, Emit: []protocol.Message{out}, StopPipeline: p.stop}, nil
}

func (*relayPolicy) Interpret(agent.View, string) ([]protocol.Message, error) {
	return nil, nil
}

func newOrchestra(t *testing.T, policies map[string]agent.Policy) (*Bus, *Orchestrator) {
	t.Helper()
	b := New()
	for name, policy := range policies {
		a := agent.New(protocol.AgentSpec{Name: name, Role: policy.Role(), Expertise: []string{protocol.TopicSession}}, policy)
		if err := b.Register(a); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	o, err := NewOrchestrator(b, nil)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return b, o
}

func TestRunPipeline_ThreadsResults(t *testing.T) {
	first := &relayPolicy{reply: "stage one spoke"}
	second := &relayPolicy{reply: "stage two spoke"}
	_, o := newOrchestra(t, map[string]agent.Policy{"first": first, "second": second})

	seed := announcement(OrchestratorName, "first")
	result, err := o.RunPipeline(context.Background(), []string{"first", "second"}, []protocol.Message{seed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Messages) != 2 {
		t.Fatalf("expected 2 emissions across the stages, got %d", len(result.Messages))
	}
	if result.Stopped {
		t.Error("expected the pipeline to run to completion")
	}

	// The second stage must have perceived the first stage's emission
	// even though it was addressed to the orchestrator.
	if len(second.perceived) != 1 {
		t.Fatalf("expected the second stage to cycle once, got %d", len(second.perceived))
	}
	sawFirst := false
	for _, m := range second.perceived[0] {
		if m.From == "first" {
			sawFirst = true
		}
	}
	if !sawFirst {
		t.Error("expected the first stage's output threaded into the second stage's perception")
	}
}

func TestRunPipeline_StopFlag(t *testing.T) {
	first := &relayPolicy{reply: "halt here", stop: true}
	second := &relayPolicy{reply: "never runs"}
	_, o := newOrchestra(t, map[string]agent.Policy{"first": first, "second": second})

	seed := announcement(OrchestratorName, "first")
	result, err := o.RunPipeline(context.Background(), []string{"first", "second"}, []protocol.Message{seed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Stopped || result.StoppedAt != "first" {
		t.Errorf("expected stop at the first stage, got stopped=%t at %q", result.Stopped, result.StoppedAt)
	}
	if len(second.perceived) != 0 {
		t.Error("expected the second stage never to cycle")
	}
}

func TestRunPipeline_UnknownStage(t *testing.T) {
	_, o := newOrchestra(t, map[string]agent.Policy{"first": &relayPolicy{}})
	if _, err := o.RunPipeline(context.Background(), []string{"ghost"}, nil); err == nil {
		t.Fatal("expected error for an unregistered stage")
	}
}

func TestRunRound_Isolation(t *testing.T) {
	left := &relayPolicy{reply: "from the left", broadcast: true}
	right := &relayPolicy{reply: "from the right", broadcast: true}
	b, o := newOrchestra(t, map[string]agent.Policy{"left": left, "right": right})

	// Seed both mailboxes so each agent speaks this round.
	prompt := announcement(OrchestratorName, protocol.Broadcast)
	prompt.Priority = protocol.PriorityCritical
	if err := b.Publish(prompt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := o.RunRound(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Emitted) != 2 {
		t.Fatalf("expected both agents to emit, got %d", len(result.Emitted))
	}

	// In-round isolation: neither agent saw the other's broadcast while
	// the round ran; the emissions land in mailboxes only afterwards.
	for _, p := range []*relayPolicy{left, right} {
		for _, fresh := range p.perceived {
			for _, m := range fresh {
				if m.From == "left" || m.From == "right" {
					t.Fatalf("agent perceived a co-round emission from %s during the round", m.From)
				}
			}
		}
	}
	if got := b.Pending("left"); got != 1 {
		t.Errorf("expected the right agent's broadcast queued for left after the round, got %d", got)
	}
	if got := b.Pending("right"); got != 1 {
		t.Errorf("expected the left agent's broadcast queued for right after the round, got %d", got)
	}
}
