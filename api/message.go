package api

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/chatrelay/broadcast"
)

// SessionHeader names the session when it is not in the query string.
const SessionHeader = "X-Chatrelay-Session"

// messageRequest is the decoded body of POST /api/message.
type messageRequest struct {
	Text    string
	Session string
}

// parseMessage reads the message body as JSON when it parses as JSON,
// regardless of the declared content type, and as a urlencoded form
// otherwise.
func parseMessage(body []byte) messageRequest {
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		if text := res.Get("text"); text.Type == gjson.String && text.Str != "" {
			msg := messageRequest{Text: text.Str}
			if session := res.Get("session"); session.Type == gjson.String {
				msg.Session = session.Str
			}
			return msg
		}
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return messageRequest{}
	}

	return messageRequest{
		Text:    form.Get("text"),
		Session: form.Get("session"),
	}
}

// sessionID resolves the session from the query string, then the session
// header, then fallback, and finally the default session.
func sessionID(c *fiber.Ctx, fallback string) string {
	for _, candidate := range []string{c.Query("session"), c.Get(SessionHeader), fallback} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id
		}
	}
	return broadcast.DefaultSession
}
