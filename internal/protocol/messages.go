package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mbertolli/convopulse/internal/dialogue"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientTurn     MessageType = "client_turn"
	TypeClientControl  MessageType = "client_control"
	TypeHealthSnapshot MessageType = "health_snapshot"
	TypeGuidance       MessageType = "guidance"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientTurn carries one dialogue turn from the driver to the tracker.
// TSMs is optional; zero means "stamp with server time".
type ClientTurn struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Speaker   string      `json:"speaker"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms,omitempty"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type HealthSnapshot struct {
	Type      MessageType       `json:"type"`
	SessionID string            `json:"session_id"`
	Snapshot  dialogue.Snapshot `json:"snapshot"`
}

type Guidance struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientTurn:
		var msg ClientTurn
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Speaker == "" || msg.Text == "" {
			return nil, errors.New("invalid client_turn")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
