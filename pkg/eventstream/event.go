package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a relayed turn finishes, whatever
	// its outcome.
	EventTypeTurnCompleted = "chatrelay.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a finished turn.
// It carries metadata only: neither the user text nor the generated answer is
// ever included.
type TurnCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Turn          TurnMeta    `json:"turn"`
}

// EventSource identifies where the turn originated.
type EventSource struct {
	SessionID string `json:"session_id,omitempty"`
	Channel   string `json:"channel"`
	Model     string `json:"model"`
}

// TurnMeta captures lifecycle metadata for the turn.
type TurnMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Fragments   int       `json:"fragments"`
	Chars       int       `json:"chars"`
	Outcome     string    `json:"outcome"`
	HTTPStatus  int       `json:"http_status,omitempty"`
}

// NewTurnCompletedEvent stamps a fresh event with a random ID and the current
// time.
func NewTurnCompletedEvent(source EventSource, turn TurnMeta) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Turn:          turn,
	}
}
