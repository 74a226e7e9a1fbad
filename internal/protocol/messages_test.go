package protocol

import (
	"errors"
	"testing"
)

func TestParseClientTurn(t *testing.T) {
	raw := []byte(`{"type":"client_turn","session_id":"s1","speaker":"user","text":"hello","ts_ms":1700000000000}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage: %v", err)
	}
	turn, ok := msg.(ClientTurn)
	if !ok {
		t.Fatalf("msg type = %T, want ClientTurn", msg)
	}
	if turn.SessionID != "s1" || turn.Speaker != "user" || turn.Text != "hello" || turn.TSMs != 1700000000000 {
		t.Fatalf("turn = %+v", turn)
	}
}

func TestParseClientControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":"end"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage: %v", err)
	}
	ctrl, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("msg type = %T, want ClientControl", msg)
	}
	if ctrl.Action != "end" {
		t.Fatalf("action = %q", ctrl.Action)
	}
}

func TestParseRejectsIncompleteMessages(t *testing.T) {
	cases := []string{
		`{"type":"client_turn","session_id":"s1","speaker":"user"}`,
		`{"type":"client_turn","speaker":"user","text":"hi"}`,
		`{"type":"client_control","session_id":"s1"}`,
	}
	for _, raw := range cases {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("accepted incomplete message %s", raw)
		}
	}
}

func TestParseRejectsUnsupportedType(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"health_snapshot"}`)); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":`)); err == nil {
		t.Fatalf("accepted malformed JSON")
	}
}
