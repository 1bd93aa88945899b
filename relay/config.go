package relay

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is the OpenAI Responses API.
	DefaultEndpoint = "https://api.openai.com/v1/responses"

	// DefaultModel is the model requested when none is configured.
	DefaultModel = "gpt-4o-mini-2024-07-18"

	// DefaultSystemPrompt is the system instruction sent ahead of every user
	// message.
	DefaultSystemPrompt = "You are an Ultriva product assistant. Answer concisely."

	// DefaultTimeout bounds a whole turn, from connect to the last byte read.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxErrorBody caps the upstream error body echoed to the user.
	DefaultMaxErrorBody = 512
)

// Config is the relay configuration. It is read once by New and never
// mutated afterwards.
type Config struct {
	// APIKey is the upstream bearer token. Empty disables the relay: every
	// turn completes with zero fragments.
	APIKey string

	// Endpoint is the upstream streaming URL (defaults to DefaultEndpoint).
	Endpoint string

	// Model is the upstream model identifier (defaults to DefaultModel).
	Model string

	// SystemPrompt is the fixed instruction prepended to each turn
	// (defaults to DefaultSystemPrompt).
	SystemPrompt string

	// Timeout bounds each turn (defaults to DefaultTimeout).
	Timeout time.Duration

	// MaxErrorBody is the number of bytes of a non-2xx body surfaced in the
	// error fragment (defaults to DefaultMaxErrorBody).
	MaxErrorBody int

	// HTTPClient is shared by all turns. Defaults to a client without its own
	// timeout; each turn is bounded by Timeout through its context.
	HTTPClient *http.Client

	// Logger is the provided slog logger (defaults to slog.Default()).
	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxErrorBody <= 0 {
		c.MaxErrorBody = DefaultMaxErrorBody
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
