// Package relay forwards one user message to an upstream LLM streaming API and
// re-emits the generated answer as an ordered sequence of text fragments.
//
//	consumer <-- Fragment chan <-- Relay <-- SSE bytes <-- Upstream LLM API
//
// Every turn owns its own connection, line parser and timer. A Relay holds
// only immutable configuration and a shared *http.Client, so any number of
// turns may run concurrently.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm/responses"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const failedRequestText = "request failed"

// Relay runs chat turns against the configured upstream.
type Relay struct {
	config    Config
	logger    *slog.Logger
	extractor *responses.Extractor
}

// New creates a Relay. Zero-valued Config fields take their defaults.
func New(config Config) *Relay {
	config.setDefaults()

	return &Relay{
		config:    config,
		logger:    config.Logger,
		extractor: responses.NewExtractor(config.Logger),
	}
}

// Model returns the upstream model every turn requests.
func (r *Relay) Model() string {
	return r.config.Model
}

// Start begins a turn for text and returns immediately. Fragments arrive on
// the turn's channel in upstream order.
//
// Cancelling ctx aborts the upstream connection; once cancellation is
// observed no further fragment is sent. The turn is additionally bounded by
// Config.Timeout.
func (r *Relay) Start(ctx context.Context, text string) *Turn {
	t := &Turn{fragments: make(chan Fragment)}
	go r.run(ctx, text, t)
	return t
}

// Stream is Start for callers that only need the fragments.
func (r *Relay) Stream(ctx context.Context, text string) <-chan Fragment {
	return r.Start(ctx, text).Fragments()
}

// Run drives a turn to completion, calling onDelta for every fragment in order
// and onDone exactly once at the end. It blocks until the turn is over.
func (r *Relay) Run(ctx context.Context, text string, onDelta func(string), onDone func()) {
	for f := range r.Stream(ctx, text) {
		onDelta(f.Text)
	}
	onDone()
}

func (r *Relay) run(parent context.Context, text string, t *Turn) {
	startTime := time.Now()
	s := &t.summary
	s.StartedAt = startTime

	defer func() {
		s.Duration = time.Since(startTime)
		r.logger.Debug("turn complete",
			"outcome", s.Outcome,
			"fragments", s.Fragments,
			"chars", s.Chars,
			"duration", s.Duration,
		)
		close(t.fragments)
	}()

	if r.config.APIKey == "" {
		r.logger.Error("cannot relay turn", "error", ErrMissingCredential)
		s.Outcome = OutcomeMissingCredential
		s.Err = ErrMissingCredential
		return
	}

	ctx, cancel := context.WithTimeout(parent, r.config.Timeout)
	defer cancel()

	send := func(f Fragment) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case t.fragments <- f:
			s.Fragments++
			s.Chars += len(f.Text)
			return true
		case <-ctx.Done():
			return false
		}
	}

	httpResp, err := r.do(ctx, text)
	if err != nil {
		if parent.Err() != nil {
			r.logger.Debug("turn cancelled before upstream responded", "error", err)
			s.Outcome = OutcomeCancelled
			s.Err = parent.Err()
			return
		}

		terr := &TransportError{Err: err}
		r.logger.Error("upstream request failed", "error", err)
		s.Outcome = OutcomeTransportError
		s.Err = terr

		// The turn's own timer may have fired; the error fragment still goes
		// out on a context that only follows the consumer.
		ctx = parent
		send(Fragment{Text: "Error: " + transportReason(err), Err: terr})
		return
	}
	defer httpResp.Body.Close()

	s.StatusCode = httpResp.StatusCode
	r.logger.Debug("upstream responded", "status", httpResp.StatusCode)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		serr := r.statusError(httpResp)
		r.logger.Error("upstream returned error",
			"status", serr.StatusCode,
			"body", serr.Body,
		)
		s.Outcome = OutcomeUpstreamStatus
		s.Err = serr

		body := serr.Body
		if body == "" {
			body = failedRequestText
		}
		send(Fragment{Text: fmt.Sprintf("Error %d: %s", serr.StatusCode, body), Err: serr})
		return
	}

	s.Outcome = r.relayEvents(ctx, parent, httpResp.Body, send)
}

// do sends the upstream request and returns the response once headers have
// arrived.
func (r *Relay) do(ctx context.Context, text string) (*http.Response, error) {
	body, err := json.Marshal(responses.NewRequest(r.config.Model, r.config.SystemPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("marshaling upstream request: %w", err)
	}

	r.logger.Debug("forwarding turn to upstream",
		"url", r.config.Endpoint,
		"model", r.config.Model,
		"body", string(body),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	return r.config.HTTPClient.Do(httpReq)
}

// relayEvents reads the upstream event stream and forwards every extracted
// text fragment until the sentinel, end of body, a read error, or
// cancellation.
func (r *Relay) relayEvents(ctx, parent context.Context, body io.Reader, send func(Fragment) bool) Outcome {
	rd := sse.NewReader(body)

	for {
		ev, err := rd.Next()
		if err != nil {
			switch {
			case parent.Err() != nil:
				return OutcomeCancelled
			case ctx.Err() != nil:
				r.logger.Warn("turn timed out mid-stream", "timeout", r.config.Timeout)
				return OutcomeTimeout
			default:
				r.logger.Error("error reading upstream stream", "error", err)
				return OutcomeReadError
			}
		}
		if ev == nil {
			return OutcomeCompleted
		}

		switch ev.Kind {
		case sse.KindComment:
			continue
		case sse.KindDone:
			r.logger.Debug("upstream sentinel received")
			continue
		}

		d := r.extractor.Extract(ev.Data)
		if d.Kind == responses.KindFailed {
			r.logger.Warn("upstream reported failure", "type", d.Type, "message", d.Text)
			continue
		}
		if !d.Emits() {
			continue
		}

		r.logger.Debug("relaying delta", "kind", d.Kind, "len", len(d.Text))
		if !send(Fragment{Text: d.Text}) {
			if parent.Err() != nil {
				return OutcomeCancelled
			}
			return OutcomeTimeout
		}
	}
}

func (r *Relay) statusError(httpResp *http.Response) *UpstreamStatusError {
	// Read a little past the cap so truncation is visible.
	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, int64(r.config.MaxErrorBody)+64))
	if err != nil {
		r.logger.Debug("could not read upstream error body", "error", err)
	}

	return &UpstreamStatusError{
		StatusCode: httpResp.StatusCode,
		Body:       utils.Truncate(utils.Sanitize(string(raw)), r.config.MaxErrorBody),
	}
}

// transportReason strips the method and URL that net/http prefixes to client
// errors, leaving the underlying cause.
func transportReason(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if errors.Is(uerr.Err, context.DeadlineExceeded) {
			return "upstream request timed out"
		}
		return uerr.Err.Error()
	}
	return err.Error()
}
