package responses

import (
	"log/slog"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const payloadPreviewLen = 200

// Extractor classifies payloads and records problems without ever failing the
// stream: malformed payloads are logged and skipped, and each distinct
// unrecognized "type" value is logged once for the life of the Extractor so
// that upstream API drift shows up in the logs.
//
// An Extractor is safe for concurrent use by independent turns.
type Extractor struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewExtractor returns an Extractor logging to logger.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Extract classifies payload. Malformed payloads come back as a zero Delta
// (KindUnrecognized, no text).
func (e *Extractor) Extract(payload string) Delta {
	d, err := Classify([]byte(payload))
	if err != nil {
		e.logger.Debug("skipping event payload",
			"error", err,
			"payload", utils.Truncate(payload, payloadPreviewLen),
		)
		return Delta{}
	}

	if d.Kind == KindUnrecognized && e.firstSighting(d.Type) {
		e.logger.Warn("unrecognized upstream event shape",
			"type", d.Type,
			"payload", utils.Truncate(payload, payloadPreviewLen),
		)
	}

	return d
}

// firstSighting reports whether typ has not been logged before and marks it.
func (e *Extractor) firstSighting(typ string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.seen[typ]; ok {
		return false
	}
	e.seen[typ] = struct{}{}
	return true
}
