package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gospel5/gospel5/internal/config"
	"github.com/gospel5/gospel5/internal/friendship"
	"github.com/gospel5/gospel5/internal/handler"
	"github.com/gospel5/gospel5/internal/metrics"
	"github.com/gospel5/gospel5/internal/middleware"
	"github.com/gospel5/gospel5/internal/store"
	ws "github.com/gospel5/gospel5/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg            config.Config
	hub            *ws.Hub
	authH          *handler.AuthHandler
	userH          *handler.UserHandler
	streakH        *handler.StreakHandler
	friendshipH    *handler.FriendshipHandler
	sessionStore   *store.SessionStore
	loginCodeStore *store.LoginCodeStore
	rateLimiter    *middleware.RateLimiter
	registry       *prometheus.Registry
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func New(db *sql.DB, cfg config.Config, mailer handler.Mailer, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionTTL)
	loginCodeStore := store.NewLoginCodeStore(db)
	streakStore := store.NewStreakStore(db)
	badgeStore := store.NewBadgeStore(db)
	friendshipStore := store.NewFriendshipStore(db)

	manager := friendship.NewManager(friendshipStore, func(ev friendship.Event) {
		edge := ev.After
		if edge == nil {
			edge = ev.Before
		}
		m.FriendshipEvent(string(ev.Type))
		hub.Send(ws.NewMessage("friendship", string(ev.Type), edge.ID, map[string]any{
			"before": ev.Before,
			"after":  ev.After,
		}), edge.RequesterID, edge.AddresseeID)
	}, logger.With("component", "friendship"))

	return &Server{
		cfg:            cfg,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, sessionStore, loginCodeStore, mailer, cfg.BaseURL, logger.With("component", "auth")),
		userH:          handler.NewUserHandler(userStore, logger.With("component", "user")),
		streakH:        handler.NewStreakHandler(streakStore, badgeStore, hub, m, cfg.Location, logger.With("component", "streak")),
		friendshipH:    handler.NewFriendshipHandler(manager, userStore, mailer, logger.With("component", "friendship_handler")),
		sessionStore:   sessionStore,
		loginCodeStore: loginCodeStore,
		rateLimiter:    middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		registry:       registry,
		metrics:        m,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// LoginCodeStore returns the login code store for cleanup tasks.
func (s *Server) LoginCodeStore() *store.LoginCodeStore {
	return s.loginCodeStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", middleware.BasicAuth(s.cfg.Metrics.User, s.cfg.Metrics.Password)(
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
	))
	mux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	mux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /api/login/verify", s.rateLimitedHandler(s.authH.Verify))

	s.registerProtectedRoutes(mux)

	var h http.Handler = mux
	h = middleware.Instrument(s.metrics)(h)
	h = handlers.CORS(
		handlers.AllowedOrigins(s.cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowCredentials(),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger.With("component", "recovery")}),
	)(h)

	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	protect := middleware.RequireAuth(s.sessionStore)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	handle("POST /api/logout", s.authH.Logout)
	handle("GET /api/me", s.userH.Me)
	handle("GET /api/users", s.userH.Lookup)

	// Streaks
	handle("POST /api/streak/visit", s.streakH.Visit)
	handle("GET /api/streak", s.streakH.Get)
	handle("GET /api/streak/badges", s.streakH.Badges)

	// Friendships
	handle("POST /api/friends/requests", s.friendshipH.SendRequest)
	handle("GET /api/friends/requests/incoming", s.friendshipH.ListIncoming)
	handle("GET /api/friends/requests/outgoing", s.friendshipH.ListOutgoing)
	handle("POST /api/friends/requests/{id}/respond", s.friendshipH.Respond)
	handle("DELETE /api/friends/{user_id}", s.friendshipH.Remove)
	handle("GET /api/friends", s.friendshipH.ListFriends)

	handle("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h)
	return rl.ServeHTTP
}

// recoveryLogger adapts slog to the logger interface gorilla's recovery
// handler expects.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("panic recovered", "error", fmt.Sprint(v...))
}
