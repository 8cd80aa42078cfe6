// Package tracelog records inter-agent traffic for observability and
// replay. The collector is a passive bus listener: it keeps a bounded
// ring of trace entries and never influences routing. One collector
// serves the whole daemon; entries are tagged with their session.
package tracelog

import (
	"fmt"
	"sync"
	"time"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

const defaultCapacity = 512

// Entry is one recorded message, flattened for querying and storage.
type Entry struct {
	Seq       uint64            `json:"seq"`
	Time      time.Time         `json:"time"`
	Session   string            `json:"session"`
	MessageID string            `json:"message_id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Kind      protocol.Kind     `json:"kind"`
	Topic     string            `json:"topic,omitempty"`
	Priority  protocol.Priority `json:"priority"`
	Summary   string            `json:"summary,omitempty"`
}

// Filter constrains a trace query. Zero values match everything.
type Filter struct {
	Session string
	Kind    protocol.Kind
	Topic   string
	Limit   int // 0 = no limit; otherwise the most recent N matches
}

// Collector is a thread-safe ring of trace entries.
type Collector struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	pos      int
	count    int
	seq      uint64
}

// New creates a collector holding up to capacity entries.
func New(capacity int) *Collector {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Collector{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Record stores a message trace under the given session.
func (c *Collector) Record(session string, msg protocol.Message) {
	c.mu.Lock()
	c.seq++
	c.entries[c.pos] = Entry{
		Seq:       c.seq,
		Time:      msg.CreatedAt,
		Session:   session,
		MessageID: msg.ID,
		From:      msg.From,
		To:        msg.To,
		Kind:      msg.Kind,
		Topic:     msg.Topic,
		Priority:  msg.Priority,
		Summary:   summarize(msg.Payload),
	}
	c.pos = (c.pos + 1) % c.capacity
	if c.count < c.capacity {
		c.count++
	}
	c.mu.Unlock()
}

// Query returns the entries matching the filter, oldest first.
func (c *Collector) Query(f Filter) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if c.count == c.capacity {
		start = c.pos
	}

	var result []Entry
	for i := 0; i < c.count; i++ {
		e := c.entries[(start+i)%c.capacity]
		if f.Session != "" && e.Session != f.Session {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if f.Topic != "" && e.Topic != f.Topic {
			continue
		}
		result = append(result, e)
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[len(result)-f.Limit:]
	}
	return result
}

// Stats reports per-kind counters over the retained entries.
type Stats struct {
	Total  int                   `json:"total"`
	ByKind map[protocol.Kind]int `json:"by_kind"`
}

// Stats counts the retained entries by kind.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if c.count == c.capacity {
		start = c.pos
	}
	s := Stats{Total: c.count, ByKind: make(map[protocol.Kind]int)}
	for i := 0; i < c.count; i++ {
		s.ByKind[c.entries[(start+i)%c.capacity].Kind]++
	}
	return s
}

// Session binds the collector to one session, satisfying the bus
// recorder contract.
func (c *Collector) Session(id string) *SessionRecorder {
	return &SessionRecorder{collector: c, session: id}
}

// SessionRecorder tags every recorded message with a fixed session id.
type SessionRecorder struct {
	collector *Collector
	session   string
}

// Record implements the bus recorder contract.
func (r *SessionRecorder) Record(msg protocol.Message) {
	r.collector.Record(r.session, msg)
}

// summarize renders a short human line per payload variant. Unknown
// payloads fall back to their type name.
func summarize(p protocol.Payload) string {
	switch v := p.(type) {
	case nil:
		return ""
	case protocol.Announcement:
		return v.Text
	case protocol.QuestBrief:
		return "quest brief"
	case protocol.QuestDraft:
		return "quest draft: " + v.Quest.Title
	case protocol.EventBrief:
		return fmt.Sprintf("event brief for step %d", v.Step)
	case protocol.EventDraft:
		return "event draft: " + v.Event.Title
	case protocol.ChoiceBrief:
		return "choice brief"
	case protocol.ChoiceSet:
		return fmt.Sprintf("%d choices", len(v.Choices))
	case protocol.ReviewRequest:
		return "review request"
	case protocol.Verdict:
		return fmt.Sprintf("verdict: valid=%t, %d warnings", v.Valid, len(v.Warnings))
	case protocol.NarrationBrief:
		return "narration brief"
	case protocol.NarrationText:
		return v.Text
	case protocol.VoteCall:
		return "vote call: " + v.Question
	case protocol.Ballot:
		return fmt.Sprintf("vote for %q (%.2f)", v.Vote.Choice, v.Vote.Confidence)
	case protocol.ProposalRound:
		return fmt.Sprintf("negotiation round %d, %d proposals", v.Round, len(v.Proposals))
	case protocol.Position:
		return fmt.Sprintf("position: agree=%t", v.Agree)
	default:
		return fmt.Sprintf("%T", p)
	}
}
