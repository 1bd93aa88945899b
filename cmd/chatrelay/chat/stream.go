package chatcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/papercomputeco/chatrelay/broadcast"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// eventBuffer bounds how far the event reader runs ahead of the printer.
const eventBuffer = 64

var errStreamClosed = errors.New("event stream closed before the answer completed")

// eventStream is the client half of a broadcast-mode session subscription.
type eventStream struct {
	cancel context.CancelFunc
	events chan broadcast.Event
	done   chan struct{}
	logger *slog.Logger
}

// openEventStream subscribes to the session's event stream and returns once
// the server has confirmed the subscription.
func openEventStream(ctx context.Context, client *http.Client, target, session string, logger *slog.Logger) (*eventStream, error) {
	sctx, cancel := context.WithCancel(ctx)

	u := target + "/api/stream?" + url.Values{"session": {session}}.Encode()
	req, err := http.NewRequestWithContext(sctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	// The server greets every subscription with a comment once it is
	// registered; messages sent before that would be refused.
	r := sse.NewReader(resp.Body)
	if ev, err := r.Next(); err != nil || ev == nil {
		resp.Body.Close()
		cancel()
		return nil, errors.New("event stream closed before it was ready")
	}

	s := &eventStream{
		cancel: cancel,
		events: make(chan broadcast.Event, eventBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.read(sctx, r, resp.Body)

	return s, nil
}

func (s *eventStream) read(ctx context.Context, r *sse.Reader, body io.Closer) {
	defer close(s.done)
	defer close(s.events)
	defer body.Close()

	for {
		ev, err := r.Next()
		if err != nil || ev == nil {
			if err != nil && ctx.Err() == nil {
				s.logger.Debug("event stream ended", "error", err)
			}
			return
		}
		if ev.Kind != sse.KindData {
			continue
		}

		var e broadcast.Event
		if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
			s.logger.Debug("skipping malformed event", "data", ev.Data, "error", err)
			continue
		}

		select {
		case s.events <- e:
		case <-ctx.Done():
			return
		}
	}
}

// answer returns a reader over the fragments of the next answer. It reaches
// EOF at assistant_done.
func (s *eventStream) answer(ctx context.Context) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		for {
			select {
			case <-ctx.Done():
				pw.CloseWithError(ctx.Err())
				return
			case e, ok := <-s.events:
				if !ok {
					pw.CloseWithError(errStreamClosed)
					return
				}
				switch e.Type {
				case broadcast.TypeAssistantChunk:
					if _, err := io.WriteString(pw, e.Delta); err != nil {
						return
					}
				case broadcast.TypeAssistantDone:
					pw.Close()
					return
				}
			}
		}
	}()

	return pr
}

// alive reports whether the subscription is still being read. A nil stream is
// not alive.
func (s *eventStream) alive() bool {
	if s == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Close ends the subscription.
func (s *eventStream) Close() {
	s.cancel()
}
