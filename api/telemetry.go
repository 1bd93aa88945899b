package api

import (
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// publishTurn enqueues a TurnCompletedEvent for the finished turn. It never
// blocks the caller.
func (s *Server) publishTurn(session string, channel Channel, summary relay.Summary) {
	s.logger.Info("turn finished",
		"session", session,
		"channel", channel,
		"outcome", summary.Outcome,
		"fragments", summary.Fragments,
		"duration", summary.Duration,
	)

	if s.pool == nil {
		return
	}

	event := eventstream.NewTurnCompletedEvent(
		eventstream.EventSource{
			SessionID: session,
			Channel:   string(channel),
			Model:     s.relay.Model(),
		},
		eventstream.TurnMeta{
			StartedAt:   summary.StartedAt.UTC(),
			CompletedAt: summary.StartedAt.Add(summary.Duration).UTC(),
			DurationMs:  summary.Duration.Milliseconds(),
			Fragments:   summary.Fragments,
			Chars:       summary.Chars,
			Outcome:     string(summary.Outcome),
			HTTPStatus:  summary.StatusCode,
		},
	)

	s.pool.Enqueue(worker.Job{Event: event})
}
