package api

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/papercomputeco/chatrelay/broadcast"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

const connectedComment = "connected"

// handleStream opens an event-stream subscription for the session. The
// subscription lives until the client disconnects, a newer subscriber for the
// same session displaces it, or the server shuts down.
func (s *Server) handleStream(c *fiber.Ctx) error {
	session := sessionID(c, "")
	sub := s.hub.Subscribe(session)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache, no-transform")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer s.hub.Unsubscribe(sub)
		s.writeEvents(w, sub)
	}))

	return nil
}

// writeEvents copies subscription events to w as SSE frames, interleaving
// keepalive comments. A failed flush means the client is gone. Events queued
// before the subscription ended are still written.
func (s *Server) writeEvents(w *bufio.Writer, sub *broadcast.Subscription) {
	sw := sse.NewWriter(w)

	if err := sw.Comment(connectedComment); err != nil {
		return
	}
	if err := w.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(s.config.Keepalive)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-sub.Ready():
			err = writeBatch(sw, sub.Drain())
		case <-ticker.C:
			err = sw.Keepalive()
		case <-sub.Done():
			if err := writeBatch(sw, sub.Drain()); err == nil {
				_ = w.Flush()
			}
			return
		case <-s.ctx.Done():
			return
		}

		if err == nil {
			err = w.Flush()
		}
		if err != nil {
			s.logger.Debug("event stream closed", "session", sub.SessionID, "error", err)
			return
		}
	}
}

func writeBatch(sw *sse.Writer, events []broadcast.Event) error {
	for _, ev := range events {
		if err := sw.WriteJSON(ev); err != nil {
			return err
		}
	}
	return nil
}

// handleBroadcastMessage acknowledges the message and relays the answer to the
// session's subscriber in the background. Without a subscriber the message is
// refused before any upstream request is made.
func (s *Server) handleBroadcastMessage(c *fiber.Ctx, session, text string) error {
	if !s.hub.Has(session) {
		s.logger.Warn("no subscriber for broadcast message", "session", session)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "no active event stream for session"})
	}

	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		s.broadcastTurn(session, text)
	}()

	return c.Status(fiber.StatusAccepted).JSON(AcceptedResponse{Status: "accepted", SessionID: session})
}

// broadcastTurn pushes one assistant_chunk per fragment and a final
// assistant_done. If the subscriber disappears mid-turn the turn is cancelled.
func (s *Server) broadcastTurn(session, text string) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	turn := s.relay.Start(ctx, text)
	for f := range turn.Fragments() {
		err := s.hub.Push(session, broadcast.Chunk(f.Text))
		if errors.Is(err, broadcast.ErrNoSubscriber) {
			s.logger.Info("subscriber left mid-turn, cancelling", "session", session)
			cancel()
		}
	}

	if err := s.hub.Push(session, broadcast.Done()); err != nil {
		s.logger.Debug("completion not delivered", "session", session, "error", err)
	}

	s.publishTurn(session, ChannelBroadcast, turn.Summary())
}
