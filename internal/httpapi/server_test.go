package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mbertolli/convopulse/internal/config"
	"github.com/mbertolli/convopulse/internal/dialogue"
	"github.com/mbertolli/convopulse/internal/embed"
	"github.com/mbertolli/convopulse/internal/observability"
	"github.com/mbertolli/convopulse/internal/protocol"
	"github.com/mbertolli/convopulse/internal/session"
	"github.com/mbertolli/convopulse/internal/store"
	"github.com/mbertolli/convopulse/internal/topics"
)

// Prometheus collectors register globally, so each test server gets its own
// metric namespace.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Config{
		SessionInactivityTimeout: 10 * time.Minute,
		WindowSize:               10,
		FragmentTurns:            5,
		FragmentMaxGap:           5 * time.Second,
		FragmentMaxLen:           160,
		CoherenceTurns:           3,
		QALowWater:               0.3,
	}
	manager := session.NewManager(func() *dialogue.Tracker {
		return dialogue.NewTracker(embed.NewMockEmbedder(), topics.NewHeuristicExtractor(), dialogue.TrackerConfig{
			WindowSize:     cfg.WindowSize,
			FragmentTurns:  cfg.FragmentTurns,
			FragmentMaxGap: cfg.FragmentMaxGap,
			FragmentMaxLen: cfg.FragmentMaxLen,
			CoherenceTurns: cfg.CoherenceTurns,
			QALowWater:     cfg.QALowWater,
		})
	}, cfg.SessionInactivityTimeout)
	metrics := observability.NewMetrics(fmt.Sprintf("test_%d", time.Now().UnixNano()))

	srv := httptest.NewServer(New(cfg, manager, store.NewInMemoryStore(), metrics).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{"user_id": "tester"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID string `json:"session_id"`
	}
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatalf("create session returned no id")
	}
	return created.ID
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	var ready struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
	}
	decodeBody(t, resp, &ready)
	if ready.Status != "ready" || ready.ActiveSessions != 0 {
		t.Fatalf("readyz = %+v", ready)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/v1/sessions/"+id+"/end", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want 200", resp.StatusCode)
	}

	// Turns against an ended session conflict.
	resp = postJSON(t, srv.URL+"/v1/sessions/"+id+"/turns", map[string]string{"speaker": "user", "text": "hello"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("turn after end status = %d, want 409", resp.StatusCode)
	}
}

func TestAddTurnReturnsSnapshot(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/v1/sessions/"+id+"/turns", map[string]string{"speaker": "user", "text": "hello there"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add turn status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		SessionID string            `json:"session_id"`
		Snapshot  dialogue.Snapshot `json:"snapshot"`
		Guidance  string            `json:"guidance"`
	}
	decodeBody(t, resp, &out)
	if out.SessionID != id {
		t.Fatalf("session_id = %q, want %q", out.SessionID, id)
	}
	if out.Snapshot.Status != dialogue.StatusWarmingUp {
		t.Fatalf("Status = %q, want %q", out.Snapshot.Status, dialogue.StatusWarmingUp)
	}
	if out.Guidance != "" {
		t.Fatalf("Guidance = %q, want empty", out.Guidance)
	}
}

func TestAddTurnValidation(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/v1/sessions/"+id+"/turns", map[string]string{"speaker": "narrator", "text": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad speaker status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/sessions/"+id+"/turns", map[string]string{"speaker": "user", "text": "  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty text status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/sessions/nope/turns", map[string]string{"speaker": "user", "text": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", resp.StatusCode)
	}
}

func TestGetHealthAndGuidance(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/v1/sessions/" + id + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("health before turns status = %d, want 404", resp.StatusCode)
	}

	postJSON(t, srv.URL+"/v1/sessions/"+id+"/turns", map[string]string{"speaker": "user", "text": "hello"}).Body.Close()

	resp, err = http.Get(srv.URL + "/v1/sessions/" + id + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	var snap dialogue.Snapshot
	decodeBody(t, resp, &snap)
	if snap.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", snap.TurnCount)
	}

	resp, err = http.Get(srv.URL + "/v1/sessions/" + id + "/guidance")
	if err != nil {
		t.Fatalf("GET guidance: %v", err)
	}
	var g struct {
		Guidance string `json:"guidance"`
	}
	decodeBody(t, resp, &g)
	if g.Guidance != "" {
		t.Fatalf("guidance = %q, want empty without alerts", g.Guidance)
	}
}

func TestHistoryRedactsPII(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	postJSON(t, srv.URL+"/v1/sessions/"+id+"/turns",
		map[string]string{"speaker": "user", "text": "my email is sam@example.com"}).Body.Close()

	resp, err := http.Get(srv.URL + "/v1/sessions/" + id + "/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	var hist struct {
		Snapshots []store.SnapshotRecord `json:"snapshots"`
	}
	decodeBody(t, resp, &hist)
	if len(hist.Snapshots) != 1 {
		t.Fatalf("len(snapshots) = %d, want 1", len(hist.Snapshots))
	}
	if strings.Contains(hist.Snapshots[0].Text, "sam@example.com") {
		t.Fatalf("persisted text leaked PII: %q", hist.Snapshots[0].Text)
	}
	if !strings.Contains(hist.Snapshots[0].Text, "[REDACTED_EMAIL]") {
		t.Fatalf("persisted text missing redaction marker: %q", hist.Snapshots[0].Text)
	}
}

func TestHealthTrendEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	postJSON(t, srv.URL+"/v1/sessions/"+id+"/turns", map[string]string{"speaker": "user", "text": "hello"}).Body.Close()

	resp, err := http.Get(srv.URL + "/v1/health/trend")
	if err != nil {
		t.Fatalf("GET trend: %v", err)
	}
	var trend observability.TrendSnapshot
	decodeBody(t, resp, &trend)
	if trend.WindowSize <= 0 {
		t.Fatalf("trend = %+v, want populated window size", trend)
	}
}

func TestWebSocketTurnFlow(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/ws?session_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(protocol.ClientTurn{
		Type:      protocol.TypeClientTurn,
		SessionID: id,
		Speaker:   "user",
		Text:      "hello over the socket",
	})
	if err != nil {
		t.Fatalf("write turn: %v", err)
	}

	var snapMsg protocol.HealthSnapshot
	if err := conn.ReadJSON(&snapMsg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapMsg.Type != protocol.TypeHealthSnapshot || snapMsg.SessionID != id {
		t.Fatalf("snapshot message = %+v", snapMsg)
	}
	if snapMsg.Snapshot.Status != dialogue.StatusWarmingUp {
		t.Fatalf("Status = %q, want %q", snapMsg.Snapshot.Status, dialogue.StatusWarmingUp)
	}

	err = conn.WriteJSON(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: id,
		Action:    "end",
	})
	if err != nil {
		t.Fatalf("write control: %v", err)
	}
	var ended protocol.SystemEvent
	if err := conn.ReadJSON(&ended); err != nil {
		t.Fatalf("read system event: %v", err)
	}
	if ended.Code != "session_ended" {
		t.Fatalf("system event = %+v", ended)
	}
}

func TestWebSocketRejectsUnknownSession(t *testing.T) {
	srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/ws?session_id=missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial succeeded against unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("handshake response = %+v, want 404", resp)
	}
}
