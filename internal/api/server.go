package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/adminstream"
	"kabuto-relay/internal/audit"
	"kabuto-relay/internal/blacklist"
	"kabuto-relay/internal/cooldown"
	"kabuto-relay/internal/ephemeral"
	"kabuto-relay/internal/markethours"
	"kabuto-relay/internal/notify"
	"kabuto-relay/internal/reconcile"
	"kabuto-relay/internal/risk"
	"kabuto-relay/internal/store"
	"kabuto-relay/internal/validate"
)

// Security bundles the three secrets the HTTP layer checks against, read by
// the caller from internal/config's env-var indirection at startup.
type Security struct {
	Passphrase    string
	APIKey        string
	AdminPassword string
}

// Deps wires every domain package built for the relay into the HTTP layer.
// One struct rather than a dozen constructor arguments, following the
// teacher's own Handler-holds-its-collaborators shape in
// internal/signal/server.go, scaled up to the relay's larger dependency set.
type Deps struct {
	DB                  *store.DB
	Ephemeral           *ephemeral.Store
	Cooldown            *cooldown.Gate
	Clock               *markethours.Clock
	KillSwitch          *risk.KillSwitch
	Risk                *risk.Controller
	Blacklist           *blacklist.Service
	Validator           *validate.Validator
	Reconciler          *reconcile.Reconciler
	Audit               *audit.Writer
	Notify              *notify.Manager
	Stream              *adminstream.Hub
	Security            Security
	SignalTTL           time.Duration
	HeartbeatStaleAfter time.Duration
}

// Server runs the relay's fiber HTTP server.
type Server struct {
	app  *fiber.App
	deps Deps
	host string
	port int
}

// NewServer builds the relay's HTTP server and registers every route of
// spec §6.
func NewServer(host string, port int, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	s := &Server{app: app, deps: deps, host: host, port: port}

	app.Use(s.requestID)
	s.setupRoutes()
	return s
}

// requestID generates a uuid per request, stores it in c.Locals("request_id")
// and returns it in the X-Request-ID response header. It does not add the id
// to the logger; handlers that want it on a log line read it via requestIDOf.
func (s *Server) requestID(c *fiber.Ctx) error {
	id := uuid.NewString()
	c.Locals("request_id", id)
	c.Set("X-Request-ID", id)
	return c.Next()
}

// requestIDOf reads the per-request uuid attached by requestID, for handlers
// that want to tag a log line with it.
func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}

func (s *Server) setupRoutes() {
	s.app.Post("/webhook", s.handleWebhook)
	s.app.Post("/webhook/test", s.handleWebhookTest)

	s.app.Get("/api/signals/pending", s.requireAPIKey, s.handlePendingSignals)
	s.app.Get("/api/signals/:id", s.requireAPIKey, s.handleGetSignal)
	s.app.Post("/api/signals/:id/ack", s.requireAPIKey, s.handleAck)
	s.app.Post("/api/signals/:id/executed", s.requireAPIKey, s.handleExecuted)
	s.app.Post("/api/signals/:id/failed", s.requireAPIKey, s.handleFailed)

	s.app.Post("/heartbeat", s.handleHeartbeat)
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/health", s.handleHealth)

	s.app.Post("/api/admin/kill-switch", s.handleKillSwitchToggle)
	s.app.Get("/api/admin/kill-switch/status", s.handleKillSwitchStatus)
	s.app.Get("/api/admin/cooldowns", s.handleCooldownList)
	s.app.Delete("/api/admin/cooldowns", s.handleCooldownReset)
	s.app.Get("/api/admin/heartbeats", s.handleHeartbeatList)

	if s.deps.Stream != nil {
		s.app.Get("/api/admin/stream", s.handleAdminStream)
	}

	s.app.Get("/metrics", s.handleMetrics)
}

func (s *Server) requireAPIKey(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return failUnauthorized(c, "invalid authorization header")
	}
	key := auth[len(prefix):]
	if key != s.deps.Security.APIKey {
		return failUnauthorized(c, "invalid API key")
	}
	return c.Next()
}

// Start runs the HTTP server; blocks until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	log.Info().Str("addr", addr).Msg("starting relay server")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying *fiber.App for tests (app.Test(req)).
func (s *Server) App() *fiber.App {
	return s.app
}

// streamEvent builds an adminstream.Event for broadcast, per SPEC_FULL.md
// §13.3's event catalogue.
func streamEvent(kind string, payload any) adminstream.Event {
	return adminstream.Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
