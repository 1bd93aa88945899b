package api

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/relay"
)

// handleDirectMessage streams the answer back as the response body, one
// fragment per line, with chunked transfer encoding.
func (s *Server) handleDirectMessage(c *fiber.Ctx, session, text string) error {
	ctx, cancel := context.WithCancel(s.ctx)
	turn := s.relay.Start(ctx, text)

	s.logger.Debug("direct turn started", "session", session)

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache, no-transform")

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter: pw.Write
	// blocks until fasthttp's chunked body writer has consumed the bytes and
	// flushed them to the socket, so each fragment reaches the client as
	// soon as it is produced.
	pr, pw := io.Pipe()

	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		s.pipeFragments(turn, pw, cancel)
		s.publishTurn(session, ChannelDirect, turn.Summary())
	}()

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// pipeFragments writes every fragment followed by a newline. A write error
// means the client went away: the turn is cancelled so the upstream read
// stops, and the remaining fragments are drained.
func (s *Server) pipeFragments(turn *relay.Turn, pw *io.PipeWriter, cancel context.CancelFunc) {
	defer pw.Close()
	defer cancel()

	for f := range turn.Fragments() {
		if _, err := io.WriteString(pw, f.Text+"\n"); err != nil {
			s.logger.Debug("client went away, cancelling turn", "error", err)
			cancel()
			for range turn.Fragments() {
			}
			return
		}
	}
}
