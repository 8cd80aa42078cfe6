// Package api exposes the session service over REST. State stays with
// the caller: every session endpoint takes the full game state in the
// body and returns derived values.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wildtale-io/wildtale/internal/archive"
	"github.com/wildtale-io/wildtale/internal/game"
	"github.com/wildtale-io/wildtale/internal/tracelog"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// GameService is the interface the API server needs from the session service.
type GameService interface {
	StartSession(ctx context.Context, team []protocol.Combatant, style string, seed int64) (*game.StartResult, error)
	AdvanceEvent(ctx context.Context, state protocol.GameState) (*protocol.EventBundle, error)
	ResolveChoice(ctx context.Context, state protocol.GameState, event protocol.Event, choice protocol.Choice) (*protocol.Resolution, error)
}

// TraceQuerier abstracts trace queries to avoid coupling to the collector.
type TraceQuerier interface {
	Query(f tracelog.Filter) []tracelog.Entry
}

// Replay is the read side of the archive. Nil disables the archive routes.
type Replay interface {
	ListSessions(filter archive.Filter) ([]*archive.SessionRecord, error)
	SessionTraces(id string) ([]tracelog.Entry, error)
}

// Config holds API server configuration.
type Config struct {
	Host    string
	Port    int
	Key     string // API key for Bearer auth
	Version string
}

// Server is the wildtale REST API server.
type Server struct {
	svc    GameService
	cfg    Config
	logger *slog.Logger
	traces TraceQuerier
	replay Replay
	srv    *http.Server
}

// NewServer creates a new API server. traces, replay and webhook may be nil.
func NewServer(svc GameService, cfg Config, logger *slog.Logger, traces TraceQuerier, replay Replay, webhook http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		traces: traces,
		replay: replay,
	}
	mux := http.NewServeMux()
	if webhook != nil {
		// Webhook endpoints carry their own auth.
		mux.Handle("POST /api/webhook/", webhook)
	}
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.requireAuth(s.handleStartSession))
	mux.HandleFunc("POST /api/sessions/advance", s.requireAuth(s.handleAdvance))
	mux.HandleFunc("POST /api/sessions/resolve", s.requireAuth(s.handleResolve))
	mux.HandleFunc("POST /api/sessions/next", s.requireAuth(s.handleNext))
	mux.HandleFunc("GET /api/traces", s.requireAuth(s.handleGetTraces))
	mux.HandleFunc("GET /api/archive/sessions", s.requireAuth(s.handleArchiveSessions))
	mux.HandleFunc("GET /api/archive/sessions/{id}/traces", s.requireAuth(s.handleArchiveTraces))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
		"agents":  len(game.RosterNames()),
	})
}

type startSessionRequest struct {
	Team  []protocol.Combatant `json:"team"`
	Style string               `json:"style,omitempty"`
	Seed  int64                `json:"seed,omitempty"`
}

type startSessionResponse struct {
	SessionID string             `json:"session_id"`
	Seed      int64              `json:"seed"`
	Quest     protocol.Quest     `json:"quest"`
	Agreed    bool               `json:"agreed"`
	State     protocol.GameState `json:"state"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.Team) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "team is required"})
		return
	}

	start, err := s.svc.StartSession(r.Context(), req.Team, req.Style, req.Seed)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{
		SessionID: start.SessionID,
		Seed:      start.Seed,
		Quest:     start.Quest,
		Agreed:    start.Agreed,
		State:     game.NewSession(start, req.Team, req.Style),
	})
}

type advanceRequest struct {
	State protocol.GameState `json:"state"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := req.State.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	bundle, err := s.svc.AdvanceEvent(r.Context(), req.State)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

type resolveRequest struct {
	State  protocol.GameState `json:"state"`
	Event  protocol.Event     `json:"event"`
	Choice protocol.Choice    `json:"choice"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := req.State.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := s.svc.ResolveChoice(r.Context(), req.State, req.Event, req.Choice)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type nextRequest struct {
	State      protocol.GameState   `json:"state"`
	Team       []protocol.Combatant `json:"team"`
	ScoreDelta int                  `json:"score_delta"`
}

type nextResponse struct {
	State    protocol.GameState `json:"state"`
	GameOver protocol.GameOver  `json:"game_over"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	var req nextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := req.State.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	next, over := game.AdvanceState(req.State, req.Team, req.ScoreDelta)
	writeJSON(w, http.StatusOK, nextResponse{State: next, GameOver: over})
}

func (s *Server) handleGetTraces(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		writeJSON(w, http.StatusOK, []tracelog.Entry{})
		return
	}

	filter := tracelog.Filter{
		Session: r.URL.Query().Get("session"),
		Kind:    protocol.Kind(r.URL.Query().Get("kind")),
		Topic:   r.URL.Query().Get("topic"),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	entries := s.traces.Query(filter)
	if entries == nil {
		entries = []tracelog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArchiveSessions(w http.ResponseWriter, r *http.Request) {
	if s.replay == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "archive disabled"})
		return
	}

	filter := archive.Filter{
		Style: r.URL.Query().Get("style"),
		Query: r.URL.Query().Get("q"),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	recs, err := s.replay.ListSessions(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []*archive.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleArchiveTraces(w http.ResponseWriter, r *http.Request) {
	if s.replay == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "archive disabled"})
		return
	}

	id := r.PathValue("id")
	entries, err := s.replay.SessionTraces(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []tracelog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
