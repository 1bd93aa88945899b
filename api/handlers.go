package api

import (
	_ "embed"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

//go:embed web/index.html
var indexHTML []byte

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIndex serves the browser chat page.
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}

// handleSession mints a fresh session ID for a browser tab.
func (s *Server) handleSession(c *fiber.Ctx) error {
	return c.JSON(SessionResponse{SessionID: uuid.NewString()})
}

// handleMessage validates a chat message and hands it to the configured
// response channel. No upstream request is made for an invalid message.
func (s *Server) handleMessage(c *fiber.Ctx) error {
	msg := parseMessage(c.Body())
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	session := sessionID(c, msg.Session)

	switch s.config.Channel {
	case ChannelBroadcast:
		return s.handleBroadcastMessage(c, session, msg.Text)
	default:
		return s.handleDirectMessage(c, session, msg.Text)
	}
}
