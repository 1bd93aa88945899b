package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the persistent chatrelay configuration stored as
// config.toml in the .chatrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Webhook  WebhookConfig  `toml:"webhook"`
	Events   EventsConfig   `toml:"events"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`

	// Channel is "direct" or "broadcast".
	Channel string `toml:"channel,omitempty"`

	// Keepalive is a Go duration string, e.g. "20s".
	Keepalive string `toml:"keepalive,omitempty"`
}

// UpstreamConfig holds settings for the upstream LLM streaming API.
type UpstreamConfig struct {
	Endpoint     string `toml:"endpoint,omitempty"`
	Model        string `toml:"model,omitempty"`
	SystemPrompt string `toml:"system_prompt,omitempty"`

	// Timeout is a Go duration string bounding each turn, e.g. "30s".
	Timeout string `toml:"timeout,omitempty"`

	// APIKey is usually left unset in favour of the OPENAI_API_KEY
	// environment variable.
	APIKey string `toml:"api_key,omitempty"`
}

// WebhookConfig holds webhook receiver settings.
type WebhookConfig struct {
	Secret string `toml:"secret,omitempty"`
}

// EventsConfig holds turn telemetry settings.
type EventsConfig struct {
	// Provider is "nop" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// chatrelay server (e.g. chatrelay chat). Target is a full URL (scheme +
// host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get    func(c *Config) string
	set    func(c *Config, v string) error
	secret bool
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.channel": {
		get: func(c *Config) string { return c.Server.Channel },
		set: func(c *Config, v string) error {
			switch v {
			case ChannelDirect, ChannelBroadcast:
				c.Server.Channel = v
				return nil
			default:
				return fmt.Errorf("invalid value for server.channel: %q (expected %s or %s)", v, ChannelDirect, ChannelBroadcast)
			}
		},
	},
	"server.keepalive": {
		get: func(c *Config) string { return c.Server.Keepalive },
		set: durationSetter("server.keepalive", func(c *Config, v string) { c.Server.Keepalive = v }),
	},
	"upstream.endpoint": {
		get: func(c *Config) string { return c.Upstream.Endpoint },
		set: func(c *Config, v string) error { c.Upstream.Endpoint = v; return nil },
	},
	"upstream.model": {
		get: func(c *Config) string { return c.Upstream.Model },
		set: func(c *Config, v string) error { c.Upstream.Model = v; return nil },
	},
	"upstream.system_prompt": {
		get: func(c *Config) string { return c.Upstream.SystemPrompt },
		set: func(c *Config, v string) error { c.Upstream.SystemPrompt = v; return nil },
	},
	"upstream.timeout": {
		get: func(c *Config) string { return c.Upstream.Timeout },
		set: durationSetter("upstream.timeout", func(c *Config, v string) { c.Upstream.Timeout = v }),
	},
	"upstream.api_key": {
		get:    func(c *Config) string { return c.Upstream.APIKey },
		set:    func(c *Config, v string) error { c.Upstream.APIKey = v; return nil },
		secret: true,
	},
	"webhook.secret": {
		get:    func(c *Config) string { return c.Webhook.Secret },
		set:    func(c *Config, v string) error { c.Webhook.Secret = v; return nil },
		secret: true,
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case EventsProviderNop, EventsProviderKafka:
				c.Events.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for events.provider: %q (expected %s or %s)", v, EventsProviderNop, EventsProviderKafka)
			}
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error { c.Events.Brokers = SplitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
}

func durationSetter(key string, assign func(c *Config, v string)) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid value for %s: must be positive", key)
		}
		assign(c, v)
		return nil
	}
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
