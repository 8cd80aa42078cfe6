package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wildtale-io/wildtale/internal/game"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// GameService is what the play manager needs from the session service.
type GameService interface {
	StartSession(ctx context.Context, team []protocol.Combatant, style string, seed int64) (*game.StartResult, error)
	AdvanceEvent(ctx context.Context, state protocol.GameState) (*protocol.EventBundle, error)
	ResolveChoice(ctx context.Context, state protocol.GameState, event protocol.Event, choice protocol.Choice) (*protocol.Resolution, error)
}

// playSession is one chat's run: the caller-held state plus the event
// currently awaiting a choice.
type playSession struct {
	state   protocol.GameState
	pending *protocol.EventBundle
}

// PlayManager owns the per-chat game state and turns chat commands into
// session service calls. It is the shared inbound handler behind every
// connector.
type PlayManager struct {
	svc    GameService
	team   []protocol.Combatant
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*playSession // chatID → session
}

// NewPlayManager creates a play manager. team is the starter roster each
// chat plays with; nil selects a builtin default.
func NewPlayManager(svc GameService, team []protocol.Combatant, logger *slog.Logger) *PlayManager {
	if logger == nil {
		logger = slog.Default()
	}
	if len(team) == 0 {
		team = DefaultTeam()
	}
	return &PlayManager{
		svc:      svc,
		team:     team,
		logger:   logger,
		sessions: make(map[string]*playSession),
	}
}

// DefaultTeam is the starter roster used when none is configured.
func DefaultTeam() []protocol.Combatant {
	return []protocol.Combatant{
		{Name: "Brook", SpeciesID: 7, MaxHealth: 100, CurrentHealth: 100, Types: []string{"water"}},
		{Name: "Cinder", SpeciesID: 4, MaxHealth: 90, CurrentHealth: 90, Types: []string{"fire"}},
		{Name: "Moss", SpeciesID: 1, MaxHealth: 95, CurrentHealth: 95, Types: []string{"grass"}},
	}
}

// HandleInbound is the InboundHandler behind every connector: it parses
// the chat command, drives the session, and replies via send.
func (pm *PlayManager) HandleInbound(ctx context.Context, msg InboundMessage, send func(context.Context, OutboundMessage) error) error {
	reply := func(text string) error {
		return send(ctx, OutboundMessage{ChatID: msg.ChatID, Content: text})
	}

	fields := strings.Fields(strings.ToLower(strings.TrimSpace(msg.Content)))
	if len(fields) == 0 {
		return reply(helpText)
	}

	switch fields[0] {
	case "play":
		style := ""
		if len(fields) > 1 {
			style = fields[1]
		}
		return pm.startRun(ctx, msg.ChatID, style, reply)
	case "1", "2", "3":
		return pm.pickChoice(ctx, msg.ChatID, int(fields[0][0]-'1'), reply)
	case "status":
		return reply(pm.renderStatus(msg.ChatID))
	case "quit":
		pm.endRun(msg.ChatID)
		return reply("Run abandoned. Send `play` to start a new one.")
	default:
		return reply(helpText)
	}
}

// Handler binds the manager to one connector's send path, yielding the
// InboundHandler the connector expects.
func (pm *PlayManager) Handler(send func(context.Context, OutboundMessage) error) InboundHandler {
	return func(ctx context.Context, msg InboundMessage) error {
		return pm.HandleInbound(ctx, msg, send)
	}
}

const helpText = "Commands:\n" +
	"  play [style] — start a new run\n" +
	"  1 | 2 | 3 — pick a choice\n" +
	"  status — show your team and progress\n" +
	"  quit — abandon the run"

func (pm *PlayManager) startRun(ctx context.Context, chatID, style string, reply func(string) error) error {
	pm.mu.Lock()
	_, running := pm.sessions[chatID]
	pm.mu.Unlock()
	if running {
		return reply("A run is already in progress. Send `status`, a choice number, or `quit`.")
	}

	start, err := pm.svc.StartSession(ctx, pm.team, style, 0)
	if err != nil {
		pm.logger.Error("start session failed", "chat_id", chatID, "error", err)
		return reply("The storytellers are unavailable right now. Try again in a moment.")
	}
	state := game.NewSession(start, pm.team, style)

	bundle, err := pm.svc.AdvanceEvent(ctx, state)
	if err != nil {
		pm.logger.Error("advance event failed", "chat_id", chatID, "error", err)
		return reply("The storytellers are unavailable right now. Try again in a moment.")
	}

	pm.mu.Lock()
	pm.sessions[chatID] = &playSession{state: state, pending: bundle}
	pm.mu.Unlock()
	pm.logger.Info("run started", "chat_id", chatID, "session", start.SessionID, "quest", start.Quest.Title)

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n%s\n\n", start.Quest.Title, start.Quest.Objective)
	b.WriteString(renderEvent(bundle))
	return reply(b.String())
}

func (pm *PlayManager) pickChoice(ctx context.Context, chatID string, idx int, reply func(string) error) error {
	pm.mu.Lock()
	sess, ok := pm.sessions[chatID]
	if !ok {
		pm.mu.Unlock()
		return reply("No run in progress. Send `play` to start one.")
	}
	if sess.pending == nil {
		pm.mu.Unlock()
		return reply("Still resolving your last choice. One moment.")
	}
	pending := sess.pending
	state := sess.state
	if idx < 0 || idx >= len(pending.Choices) {
		pm.mu.Unlock()
		return reply(fmt.Sprintf("Pick a number between 1 and %d.", len(pending.Choices)))
	}
	// Claim the event so a duplicate message cannot resolve it twice.
	sess.pending = nil
	pm.mu.Unlock()

	// Puts the claimed event back so the chat can retry after a failure.
	restore := func() {
		pm.mu.Lock()
		if cur, ok := pm.sessions[chatID]; ok && cur == sess {
			cur.pending = pending
		}
		pm.mu.Unlock()
	}

	res, err := pm.svc.ResolveChoice(ctx, state, pending.Event, pending.Choices[idx])
	if err != nil {
		restore()
		pm.logger.Error("resolve choice failed", "chat_id", chatID, "error", err)
		return reply("The storytellers are unavailable right now. Try again in a moment.")
	}

	next, over := game.AdvanceState(state, res.UpdatedTeam, res.Outcome.ScoreDelta)

	var b strings.Builder
	b.WriteString(res.Outcome.Narration)
	b.WriteString("\n")
	if over.Over {
		pm.endRun(chatID)
		if over.Victory {
			fmt.Fprintf(&b, "\n🏆 **Quest complete!** Final score: %d.\nSend `play` to start a new run.", next.CumulativeScore)
		} else {
			fmt.Fprintf(&b, "\n💀 **%s** Final score: %d.\nSend `play` to start a new run.", capitalize(over.Reason), next.CumulativeScore)
		}
		return reply(b.String())
	}

	bundle, err := pm.svc.AdvanceEvent(ctx, next)
	if err != nil {
		restore()
		pm.logger.Error("advance event failed", "chat_id", chatID, "error", err)
		return reply("The storytellers are unavailable right now. Try again in a moment.")
	}

	pm.mu.Lock()
	if cur, ok := pm.sessions[chatID]; ok && cur == sess {
		cur.state = next
		cur.pending = bundle
	}
	pm.mu.Unlock()

	b.WriteString("\n")
	b.WriteString(renderEvent(bundle))
	return reply(b.String())
}

func (pm *PlayManager) endRun(chatID string) {
	pm.mu.Lock()
	delete(pm.sessions, chatID)
	pm.mu.Unlock()
}

// Active reports whether a chat has a run in progress.
func (pm *PlayManager) Active(chatID string) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	_, ok := pm.sessions[chatID]
	return ok
}

func (pm *PlayManager) renderStatus(chatID string) string {
	pm.mu.Lock()
	sess, ok := pm.sessions[chatID]
	pm.mu.Unlock()
	if !ok {
		return "No run in progress. Send `play` to start one."
	}

	s := sess.state
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** — step %d of %d, score %d\n",
		s.Quest.Title, s.CurrentStep, s.Quest.TargetStepCount, s.CumulativeScore)
	for _, c := range s.Team {
		marker := "❤️"
		if c.Fainted() {
			marker = "💤"
		}
		fmt.Fprintf(&b, "%s %s — %.0f/%.0f HP (%s)\n",
			marker, c.Name, c.CurrentHealth, c.MaxHealth, strings.Join(c.Types, "/"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderEvent formats an event and its choices for chat.
func renderEvent(bundle *protocol.EventBundle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n%s\n", bundle.Event.Title, bundle.Narration)
	if bundle.Event.EnemyName != "" {
		fmt.Fprintf(&b, "A wild %s appears (power %.0f).\n", bundle.Event.EnemyName, bundle.Event.EnemyPower)
	}
	b.WriteString("\n")
	for i, c := range bundle.Choices {
		fmt.Fprintf(&b, "%d. %s _(%s)_\n", i+1, c.Label, c.Risk)
	}
	b.WriteString("\nPick 1, 2 or 3.")
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
