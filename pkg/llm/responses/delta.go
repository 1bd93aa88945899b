package responses

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Upstream event types with special meaning to the relay.
const (
	TypeOutputTextDelta = "response.output_text.delta"
	TypeOutputText      = "response.output_text"
	TypeCompleted       = "response.completed"
	TypeFailed          = "response.failed"
	TypeError           = "error"
)

// lifecycleTypes are event types known to carry no assistant text. They are
// recognized so that they are not reported as drift.
var lifecycleTypes = toSet(
	"response.created",
	"response.in_progress",
	"response.queued",
	"response.incomplete",
	"response.output_item.added",
	"response.output_item.done",
	"response.content_part.added",
	"response.content_part.done",
	"response.output_text.done",
	"response.output_text.annotation.added",
	"response.refusal.delta",
	"response.refusal.done",
	"response.reasoning_summary_part.added",
	"response.reasoning_summary_part.done",
	"response.reasoning_summary_text.delta",
	"response.reasoning_summary_text.done",
)

// Kind is the closed set of payload shapes.
type Kind int

const (
	// KindUnrecognized matched no known shape. Nothing is emitted.
	KindUnrecognized Kind = iota

	// KindDelta is an incremental text delta, the normal streaming case.
	KindDelta

	// KindFullText is a whole-text event, emitted once as if it were a delta.
	KindFullText

	// KindCompleted is the completion marker. Nothing is emitted.
	KindCompleted

	// KindLegacy is text recovered from an older response shape.
	KindLegacy

	// KindLifecycle is a known event type that never carries text.
	KindLifecycle

	// KindFailed reports an upstream failure mid-stream. Text holds the
	// upstream error message.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindFullText:
		return "full_text"
	case KindCompleted:
		return "completed"
	case KindLegacy:
		return "legacy"
	case KindLifecycle:
		return "lifecycle"
	case KindFailed:
		return "failed"
	default:
		return "unrecognized"
	}
}

// Delta is the classification of one event payload.
type Delta struct {
	Kind Kind

	// Type is the payload's "type" field, empty if absent.
	Type string

	// Text is the fragment to emit. Empty means nothing to emit.
	Text string
}

// Emits reports whether d carries assistant text for the consumer.
func (d Delta) Emits() bool {
	switch d.Kind {
	case KindDelta, KindFullText, KindLegacy:
		return d.Text != ""
	default:
		return false
	}
}

// Classify maps one event payload onto the closed set of shapes. Shapes are
// checked in priority order; a typed event missing its text field falls
// through to the legacy shapes.
func Classify(payload []byte) (Delta, error) {
	if !gjson.ValidBytes(payload) {
		return Delta{}, fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(payload))
	}

	res := gjson.ParseBytes(payload)
	typ := res.Get("type").String()

	switch typ {
	case TypeOutputTextDelta:
		if text, ok := stringField(res, "delta"); ok {
			return Delta{Kind: KindDelta, Type: typ, Text: text}, nil
		}
	case TypeOutputText:
		if text, ok := stringField(res, "output_text"); ok {
			return Delta{Kind: KindFullText, Type: typ, Text: text}, nil
		}
	case TypeCompleted:
		return Delta{Kind: KindCompleted, Type: typ}, nil
	case TypeError:
		return Delta{Kind: KindFailed, Type: typ, Text: res.Get("message").String()}, nil
	case TypeFailed:
		return Delta{Kind: KindFailed, Type: typ, Text: res.Get("response.error.message").String()}, nil
	}

	if text, ok := stringField(res, "output.0.content.0.text.value"); ok && text != "" {
		return Delta{Kind: KindLegacy, Type: typ, Text: text}, nil
	}
	if text, ok := stringField(res, "output_text"); ok && text != "" {
		return Delta{Kind: KindLegacy, Type: typ, Text: text}, nil
	}

	if _, ok := lifecycleTypes[typ]; ok {
		return Delta{Kind: KindLifecycle, Type: typ}, nil
	}

	return Delta{Kind: KindUnrecognized, Type: typ}, nil
}

// stringField returns the string at path, and false when the path is absent
// or holds a non-string value.
func stringField(res gjson.Result, path string) (string, bool) {
	v := res.Get(path)
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
