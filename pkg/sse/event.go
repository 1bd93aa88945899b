// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// toolkit for the chatrelay server.
//
// On the upstream side, Parser and Reader turn an arbitrarily chunked byte
// stream from an LLM provider into discrete line events, tolerating chunk
// boundaries anywhere (including inside a multi-byte character or inside the
// "[DONE]" sentinel). On the downstream side, Writer frames JSON events and
// keepalive comments for browsers subscribed to the broadcast channel.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Kind discriminates the events produced by Parser.
type Kind int

const (
	// KindComment is a blank line or a ":" comment line. These carry no data
	// and are typically upstream keepalives.
	KindComment Kind = iota

	// KindData is a "data:" line. Data holds the trimmed payload.
	KindData

	// KindDone is the "[DONE]" sentinel. Nothing follows it.
	KindDone
)

// DoneSentinel is the reserved data payload marking end-of-stream.
const DoneSentinel = "[DONE]"

func (k Kind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindData:
		return "data"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event represents a single parsed upstream line.
type Event struct {
	Kind Kind

	// Data is the payload of a KindData event with the "data:" prefix and
	// surrounding whitespace removed. Empty for other kinds.
	Data string
}
