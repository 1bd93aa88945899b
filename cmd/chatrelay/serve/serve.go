// Package servecmder provides the serve command that runs the chatrelay
// server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/broadcast"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the server to listen on"},
	config.FlagChannel:        {Name: "channel", Shorthand: "c", ViperKey: "server.channel", Description: "Response channel mode (direct, broadcast)"},
	config.FlagKeepalive:      {Name: "keepalive", ViperKey: "server.keepalive", Description: "Interval between keepalive comments on idle event streams"},
	config.FlagEndpoint:       {Name: "endpoint", Shorthand: "e", ViperKey: "upstream.endpoint", Description: "Upstream streaming API URL"},
	config.FlagModel:          {Name: "model", Shorthand: "m", ViperKey: "upstream.model", Description: "Upstream model identifier"},
	config.FlagSystemPrompt:   {Name: "system-prompt", ViperKey: "upstream.system_prompt", Description: "System instruction sent with every message"},
	config.FlagTimeout:        {Name: "timeout", ViperKey: "upstream.timeout", Description: "Upper bound on a single turn"},
	config.FlagEventsProvider: {Name: "events-provider", ViperKey: "events.provider", Description: "Turn telemetry sink (nop, kafka)"},
	config.FlagEventsBrokers:  {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers for turn telemetry"},
	config.FlagEventsTopic:    {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for turn telemetry"},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagChannel,
	config.FlagKeepalive,
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagSystemPrompt,
	config.FlagTimeout,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

// settings is the fully resolved serve configuration.
type settings struct {
	listen    string
	channel   api.Channel
	keepalive time.Duration

	endpoint     string
	model        string
	systemPrompt string
	timeout      time.Duration
	apiKey       string

	webhookSecret string

	eventsProvider string
	eventsBrokers  []string
	eventsTopic    string
}

type serveCommander struct {
	// flag targets; the resolved values live in settings
	listen         string
	channel        string
	keepalive      string
	endpoint       string
	model          string
	systemPrompt   string
	timeout        string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string

	logFile   string
	logJSON   bool
	debug     bool
	settings  *settings
	logger    *slog.Logger
	closeLogs func()
}

const serveLongDesc string = `Run the chatrelay server.

The server hosts the chat page, relays each message to the upstream LLM
streaming API, and delivers the answer either in the message response
(direct) or on the session's event stream (broadcast).

The upstream API key is read from OPENAI_API_KEY (or
CHATRELAY_UPSTREAM_API_KEY, or upstream.api_key in config.toml). Without a
key every message completes with an empty answer.

Examples:
  chatrelay serve
  chatrelay serve --channel broadcast --listen :9000
  chatrelay serve --events-provider kafka --events-brokers kafka:9092`

const serveShortDesc string = "Run the chatrelay server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

			cmder.settings, err = resolveSettings(v)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagChannel, &cmder.channel)
	config.AddStringFlag(cmd, serveFlags, config.FlagKeepalive, &cmder.keepalive)
	config.AddStringFlag(cmd, serveFlags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, serveFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, serveFlags, config.FlagSystemPrompt, &cmder.systemPrompt)
	config.AddStringFlag(cmd, serveFlags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file (with source locations under --debug)")
	cmd.Flags().BoolVar(&cmder.logJSON, "log-json", false, "Write JSON logs to stdout instead of colorized text")

	return cmd
}

// resolveSettings reads the effective configuration out of v, which carries
// flag > env > config file > default precedence.
func resolveSettings(v *viper.Viper) (*settings, error) {
	s := &settings{
		listen:         v.GetString("server.listen"),
		channel:        api.Channel(v.GetString("server.channel")),
		endpoint:       v.GetString("upstream.endpoint"),
		model:          v.GetString("upstream.model"),
		systemPrompt:   v.GetString("upstream.system_prompt"),
		apiKey:         v.GetString("upstream.api_key"),
		webhookSecret:  v.GetString("webhook.secret"),
		eventsProvider: v.GetString("events.provider"),
		eventsTopic:    v.GetString("events.topic"),
	}

	switch s.channel {
	case api.ChannelDirect, api.ChannelBroadcast:
	default:
		return nil, fmt.Errorf("invalid channel %q (expected %s or %s)", s.channel, api.ChannelDirect, api.ChannelBroadcast)
	}

	var err error
	if s.keepalive, err = positiveDuration(v, "server.keepalive"); err != nil {
		return nil, err
	}
	if s.timeout, err = positiveDuration(v, "upstream.timeout"); err != nil {
		return nil, err
	}

	// Flags and env vars arrive as one comma separated string; the config
	// file as a TOML array.
	for _, entry := range v.GetStringSlice("events.brokers") {
		s.eventsBrokers = append(s.eventsBrokers, config.SplitList(entry)...)
	}

	switch s.eventsProvider {
	case config.EventsProviderNop:
	case config.EventsProviderKafka:
		if len(s.eventsBrokers) == 0 {
			return nil, fmt.Errorf("events provider %q requires at least one broker", s.eventsProvider)
		}
	default:
		return nil, fmt.Errorf("invalid events provider %q (expected %s or %s)", s.eventsProvider, config.EventsProviderNop, config.EventsProviderKafka)
	}

	return s, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func (c *serveCommander) run(ctx context.Context) error {
	if err := c.setupLogger(); err != nil {
		return err
	}
	defer c.closeLogs()

	s := c.settings
	if s.apiKey == "" {
		c.logger.Warn("no upstream API key configured, every message will complete with an empty answer")
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	// The pool drains after the server has stopped producing events.
	defer pool.Close()

	r := relay.New(relay.Config{
		APIKey:       s.apiKey,
		Endpoint:     s.endpoint,
		Model:        s.model,
		SystemPrompt: s.systemPrompt,
		Timeout:      s.timeout,
		Logger:       c.logger,
	})

	server := api.NewServer(api.Config{
		ListenAddr:    s.listen,
		Channel:       s.channel,
		Keepalive:     s.keepalive,
		WebhookSecret: s.webhookSecret,
	}, r, broadcast.NewHub(c.logger), pool, c.logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// setupLogger builds the stdout logger and, with --log-file, tees every
// record into a JSON log file as well. With --debug the file records carry
// their source location.
func (c *serveCommander) setupLogger() error {
	stdout := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.logJSON),
		logger.WithJSON(c.logJSON),
		logger.WithComponent("serve"),
	)
	c.logger = stdout
	c.closeLogs = func() {}

	if c.logFile == "" {
		return nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
		logger.WithComponent("serve"),
		logger.WithSource(c.debug),
	)
	c.logger = logger.Multi(stdout, file)
	c.closeLogs = func() { _ = f.Close() }

	return nil
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	s := c.settings
	if s.eventsProvider != config.EventsProviderKafka {
		c.logger.Debug("turn telemetry disabled")
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: s.eventsBrokers,
		Topic:   s.eventsTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing turn telemetry",
		"provider", s.eventsProvider,
		"brokers", s.eventsBrokers,
		"topic", s.eventsTopic,
	)
	return publisher, nil
}
