// Package web serves the navigation HTTP API, the device session sockets and
// the dashboard status feed.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/hub"
	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/session"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStaticDir serves a dashboard front end from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithSessionOptions passes options to the session hub.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Server) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithAccessLog enables the per-request access log.
func WithAccessLog(enabled bool) Option {
	return func(s *Server) {
		s.accessLog = enabled
	}
}

// Server is the navigation web server
type Server struct {
	app     *fiber.App
	addr    string
	cfg     navigation.Config
	store   *floorplan.Store
	started time.Time

	logger      *slog.Logger
	staticDir   string
	accessLog   bool
	sessionOpts []session.Option

	// Device sessions, one engine each
	sessions *session.Hub

	// Dashboard broadcast
	statusHub *hub.Hub
}

// NewServer creates a server for the plan held by store
func NewServer(addr string, store *floorplan.Store, cfg navigation.Config, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		cfg:       cfg,
		store:     store,
		started:   time.Now(),
		logger:    slog.Default().With("component", "web"),
		accessLog: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.statusHub = hub.New("status", hub.WithLogger(s.logger))
	s.sessions = session.NewHub(store, cfg, s.sessionOpts...)
	s.sessions.OnConnect(s.statusHub.SessionConnected)
	s.sessions.OnDisconnect(s.statusHub.SessionDisconnected)
	s.sessions.OnEvent(func(id string, ev navigation.Event) {
		if err := s.statusHub.PublishEvent(id, ev); err != nil {
			s.logger.Debug("status update", "error", err)
		}
	})

	app := fiber.New(fiber.Config{
		AppName:               "AR Navigation",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if s.accessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New())

	if s.staticDir != "" {
		app.Static("/", s.staticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)
	api.Get("/floorplan", s.handleFloorplan)
	api.Get("/route", s.handleRoute)
	s.sessions.RegisterAPIRoutes(api)

	// Device sockets
	s.sessions.RegisterRoutes(app)

	// Dashboard feed
	app.Use("/ws/status", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", s.statusHub.Handler())

	s.app = app
	return s
}

// Start runs the status hub and serves until the listener fails or ctx ends
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.announcePlan(ctx)

	s.logger.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// announcePlan tells dashboards once the floor plan is ready.
func (s *Server) announcePlan(ctx context.Context) {
	select {
	case <-s.store.Ready():
	case <-ctx.Done():
		return
	}
	g, _, ok := s.store.Current()
	if !ok {
		return
	}
	err := s.statusHub.Publish(hub.Update{
		Type:   hub.UpdatePlanLoaded,
		Detail: fiber.Map{"nodes": g.Len(), "dropped": g.Dropped()},
	})
	if err != nil {
		s.logger.Error("announce plan", "error", err)
	}
}

// App returns the underlying Fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Sessions returns the device session hub
func (s *Server) Sessions() *session.Hub {
	return s.sessions
}

// StatusHub returns the dashboard hub
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
