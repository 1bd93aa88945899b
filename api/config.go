// Package api provides the chatrelay HTTP server: the browser chat page, the
// message endpoint in either response channel mode, the event-stream
// subscription, and the webhook receiver.
package api

import "time"

// Channel selects how the answer to POST /api/message is delivered.
type Channel string

const (
	// ChannelDirect streams fragments back as the message response body.
	ChannelDirect Channel = "direct"

	// ChannelBroadcast acknowledges the message and pushes fragments to the
	// session's event-stream subscriber.
	ChannelBroadcast Channel = "broadcast"
)

const defaultKeepalive = 20 * time.Second

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Channel is the response channel mode (defaults to ChannelDirect).
	Channel Channel

	// Keepalive is the interval between comment frames on idle event
	// streams (defaults to 20s).
	Keepalive time.Duration

	// WebhookSecret signs webhook deliveries. Empty disables verification.
	WebhookSecret string
}
