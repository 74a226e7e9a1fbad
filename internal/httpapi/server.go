package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mbertolli/convopulse/internal/config"
	"github.com/mbertolli/convopulse/internal/dialogue"
	"github.com/mbertolli/convopulse/internal/observability"
	"github.com/mbertolli/convopulse/internal/policy"
	"github.com/mbertolli/convopulse/internal/session"
	"github.com/mbertolli/convopulse/internal/store"
)

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	store    store.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, snapshots store.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		store:    snapshots,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only same-origin browser connections, so another
				// site cannot drive or observe a user's conversation if the
				// service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Post("/v1/sessions/{id}/turns", s.handleAddTurn)
	r.Get("/v1/sessions/{id}/health", s.handleGetHealth)
	r.Get("/v1/sessions/{id}/guidance", s.handleGetGuidance)
	r.Get("/v1/sessions/{id}/history", s.handleGetHistory)
	r.Get("/v1/sessions/ws", s.handleSessionWS)
	r.Get("/v1/health/trend", s.handleHealthTrend)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	session.Session
	InactivityTTLMS int64 `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	sess := s.sessions.Create(req.UserID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, createSessionResponse{
		Session:         sess,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

type addTurnRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	TSMs    int64  `json:"ts_ms,omitempty"`
}

type addTurnResponse struct {
	SessionID string            `json:"session_id"`
	Snapshot  dialogue.Snapshot `json:"snapshot"`
	Guidance  string            `json:"guidance,omitempty"`
}

func (s *Server) handleAddTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req addTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	snap, guidance, err := s.ingestTurn(r.Context(), id, req.Speaker, req.Text, req.TSMs)
	if err != nil {
		respondIngestError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, addTurnResponse{SessionID: id, Snapshot: snap, Guidance: guidance})
}

func (s *Server) handleGetHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok, err := s.sessions.Latest(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no_snapshot", "no turns ingested yet")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetGuidance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, err := s.sessions.Guidance(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"session_id": id, "guidance": text})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	records, err := s.store.RecentSnapshots(r.Context(), id, 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session_id": id, "snapshots": records})
}

func (s *Server) handleHealthTrend(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotTrend())
}

// ingestTurn is the shared turn path for the HTTP and websocket surfaces:
// validate the speaker, run the tracker, record instruments, and persist a
// redacted telemetry copy best-effort.
func (s *Server) ingestTurn(ctx context.Context, sessionID, rawSpeaker, text string, tsMs int64) (dialogue.Snapshot, string, error) {
	speaker, err := dialogue.ParseSpeaker(rawSpeaker)
	if err != nil {
		return dialogue.Snapshot{}, "", err
	}

	var at time.Time
	if tsMs > 0 {
		at = time.UnixMilli(tsMs).UTC()
	}

	started := time.Now()
	snap, err := s.sessions.AddTurn(ctx, sessionID, speaker, text, at)
	if err != nil {
		return dialogue.Snapshot{}, "", err
	}

	s.metrics.TurnsIngested.WithLabelValues(string(speaker)).Inc()
	s.metrics.ObserveSnapshot(snap, time.Since(started))

	guidance, _ := s.sessions.Guidance(sessionID)

	redacted, _ := policy.RedactPII(text)
	kinds := make([]string, 0, len(snap.Alerts))
	for _, a := range snap.Alerts {
		kinds = append(kinds, string(a.Kind))
	}
	if err := s.store.SaveSnapshot(ctx, store.SnapshotRecord{
		SessionID:  sessionID,
		Speaker:    string(speaker),
		Text:       redacted,
		Status:     string(snap.Status),
		Context:    string(snap.Context),
		Drift:      snap.Metrics.Drift,
		Coherence:  snap.Metrics.Coherence,
		QARatio:    snap.Metrics.QARatio,
		Fragmented: snap.Metrics.Fragmented,
		AlertKinds: kinds,
		CreatedAt:  snap.GeneratedAt,
	}); err != nil {
		log.Printf("snapshot persist failed for session %s: %v", sessionID, err)
	}

	return snap, guidance, nil
}

func respondIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dialogue.ErrInvalidSpeaker):
		respondError(w, http.StatusBadRequest, "invalid_speaker", err.Error())
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrEnded):
		respondError(w, http.StatusConflict, "session_ended", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, errorResponse{Error: detail, Code: code})
}
