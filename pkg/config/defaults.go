package config

const (
	ChannelDirect    = "direct"
	ChannelBroadcast = "broadcast"

	EventsProviderNop   = "nop"
	EventsProviderKafka = "kafka"
)

const (
	defaultListen    = ":8080"
	defaultChannel   = ChannelDirect
	defaultKeepalive = "20s"

	defaultEndpoint     = "https://api.openai.com/v1/responses"
	defaultModel        = "gpt-4o-mini-2024-07-18"
	defaultSystemPrompt = "You are an Ultriva product assistant. Answer concisely."
	defaultTimeout      = "30s"

	defaultEventsProvider = EventsProviderNop
	defaultEventsTopic    = "chatrelay.turns"

	defaultClientTarget = "http://localhost:8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:    defaultListen,
			Channel:   defaultChannel,
			Keepalive: defaultKeepalive,
		},
		Upstream: UpstreamConfig{
			Endpoint:     defaultEndpoint,
			Model:        defaultModel,
			SystemPrompt: defaultSystemPrompt,
			Timeout:      defaultTimeout,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
	}
}
