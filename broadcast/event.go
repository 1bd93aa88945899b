package broadcast

const (
	// TypeAssistantChunk carries one text fragment of the answer.
	TypeAssistantChunk = "assistant_chunk"

	// TypeAssistantDone marks the end of an answer.
	TypeAssistantDone = "assistant_done"
)

// Event is one JSON message pushed to a subscriber.
type Event struct {
	Type  string `json:"type"`
	Delta string `json:"delta,omitempty"`
}

// Chunk returns an assistant_chunk event for delta.
func Chunk(delta string) Event {
	return Event{Type: TypeAssistantChunk, Delta: delta}
}

// Done returns an assistant_done event.
func Done() Event {
	return Event{Type: TypeAssistantDone}
}
