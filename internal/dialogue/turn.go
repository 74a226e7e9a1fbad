package dialogue

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies which side of the dialogue produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

var ErrInvalidSpeaker = errors.New("invalid speaker")

// ParseSpeaker normalizes a wire-level speaker string.
func ParseSpeaker(raw string) (Speaker, error) {
	switch Speaker(strings.ToLower(strings.TrimSpace(raw))) {
	case SpeakerUser:
		return SpeakerUser, nil
	case SpeakerAssistant:
		return SpeakerAssistant, nil
	default:
		return "", ErrInvalidSpeaker
	}
}

// Turn is a single utterance in the dialogue. Text, speaker and timestamp are
// fixed at ingestion; the embedding is computed lazily and cached, and the
// derived fields are filled in during metric computation.
type Turn struct {
	ID            string    `json:"id"`
	Speaker       Speaker   `json:"speaker"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	QuestionCount int       `json:"question_count"`
	IsRapid       bool      `json:"is_rapid"`

	embedding []float32
}

func newTurn(speaker Speaker, text string, at time.Time) *Turn {
	return &Turn{
		ID:            uuid.NewString(),
		Speaker:       speaker,
		Text:          text,
		Timestamp:     at,
		QuestionCount: strings.Count(text, "?"),
	}
}
