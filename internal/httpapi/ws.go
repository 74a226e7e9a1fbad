package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mbertolli/convopulse/internal/protocol"
	"github.com/mbertolli/convopulse/internal/session"
)

// handleSessionWS drives a session over one websocket: the client streams
// turns, the server answers each with the fresh health snapshot, plus
// guidance whenever alerts fire. Handling is synchronous in the read loop,
// which keeps websocket writes single-threaded.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if _, err := s.sessions.Get(sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	defer s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	writeJSON := func(msgType protocol.MessageType, v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(v); err != nil {
			return false
		}
		s.metrics.WSMessages.WithLabelValues("outbound", string(msgType)).Inc()
		return true
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			if !writeJSON(protocol.TypeErrorEvent, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Detail:    err.Error(),
			}) {
				return
			}
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientTurn:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeClientTurn)).Inc()
			snap, guidance, err := s.ingestTurn(r.Context(), sessionID, msg.Speaker, msg.Text, msg.TSMs)
			if err != nil {
				code := "ingest_failed"
				if errors.Is(err, session.ErrEnded) {
					code = "session_ended"
				}
				if !writeJSON(protocol.TypeErrorEvent, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: sessionID,
					Code:      code,
					Detail:    err.Error(),
				}) {
					return
				}
				continue
			}
			if !writeJSON(protocol.TypeHealthSnapshot, protocol.HealthSnapshot{
				Type:      protocol.TypeHealthSnapshot,
				SessionID: sessionID,
				Snapshot:  snap,
			}) {
				return
			}
			if guidance != "" {
				if !writeJSON(protocol.TypeGuidance, protocol.Guidance{
					Type:      protocol.TypeGuidance,
					SessionID: sessionID,
					Text:      guidance,
				}) {
					return
				}
			}
		case protocol.ClientControl:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeClientControl)).Inc()
			if msg.Action == "end" {
				if _, err := s.sessions.End(sessionID); err == nil {
					s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
					s.metrics.SessionEvents.WithLabelValues("ended").Inc()
				}
				writeJSON(protocol.TypeSystemEvent, protocol.SystemEvent{
					Type:      protocol.TypeSystemEvent,
					SessionID: sessionID,
					Code:      "session_ended",
				})
				return
			}
		}
	}
}
