package api

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/broadcast"
	"github.com/papercomputeco/chatrelay/pkg/webhook"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// Relayer starts chat turns.
type Relayer interface {
	Start(ctx context.Context, text string) *relay.Turn
	Model() string
}

// Server is the chatrelay HTTP server.
type Server struct {
	config Config
	relay  Relayer
	hub    *broadcast.Hub
	pool   *worker.Pool
	logger *slog.Logger
	app    *fiber.App

	// ctx parents every turn. It is independent of fasthttp's request
	// context, which is recycled as soon as a handler returns.
	ctx    context.Context
	cancel context.CancelFunc
	turns  sync.WaitGroup
}

// NewServer creates a new API server. The hub and the worker pool are
// injected so that they can be shared with other components; pool may be nil
// to disable turn telemetry.
func NewServer(config Config, r Relayer, hub *broadcast.Hub, pool *worker.Pool, logger *slog.Logger) *Server {
	if config.Channel == "" {
		config.Channel = ChannelDirect
	}
	if config.Keepalive <= 0 {
		config.Keepalive = defaultKeepalive
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config: config,
		relay:  r,
		hub:    hub,
		pool:   pool,
		logger: logger,
		app:    app,
		ctx:    ctx,
		cancel: cancel,
	}

	verifier := webhook.NewVerifier(config.WebhookSecret, logger)

	app.Get("/", s.handleIndex)
	app.Get("/ping", s.handlePing)
	app.Get("/api/session", s.handleSession)
	app.Get("/api/stream", s.handleStream)
	app.Post("/api/message", s.handleMessage)
	app.Post("/api/webhook", adaptor.HTTPHandler(verifier.Middleware(webhook.Ack(logger))))

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting chatrelay server",
		"listen", s.config.ListenAddr,
		"channel", s.config.Channel,
		"model", s.relay.Model(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting chatrelay server",
		"listen", listener.Addr().String(),
		"channel", s.config.Channel,
		"model", s.relay.Model(),
	)
	return s.app.Listener(listener)
}

// Shutdown stops accepting connections, aborts in-flight turns, ends every
// event-stream subscription and waits for turn goroutines to finish.
func (s *Server) Shutdown() error {
	s.cancel()
	s.hub.CloseAll()
	err := s.app.Shutdown()
	s.turns.Wait()
	return err
}
