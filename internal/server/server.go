package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pratyush314/acquisitions/config"
	"github.com/pratyush314/acquisitions/internal/db"
	"github.com/pratyush314/acquisitions/internal/events"
	"github.com/pratyush314/acquisitions/internal/guard"
	"github.com/pratyush314/acquisitions/internal/handlers"
	"github.com/pratyush314/acquisitions/internal/logging"
	"github.com/pratyush314/acquisitions/internal/services"
	"github.com/pratyush314/acquisitions/internal/store"
	"github.com/pratyush314/acquisitions/internal/token"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
	provider   *guard.LocalProvider
	logger     logging.Logger
	startedAt  time.Time
}

// New constructs a Server with the full middleware and route stack.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	logger := logging.NewDefault(cfg.IsProduction())

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := eventsBackend(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	publisher := events.NewPublisher(backend, logger)

	userRepo := store.NewUserRepository(dbConn)
	authService := services.NewAuthService(userRepo, cfg.Auth.BcryptCost)
	userService := services.NewUserService(userRepo, cfg.Auth.BcryptCost)

	signer := token.NewSigner(jwtSecret, cfg.Auth.TokenTTL)
	cookies := handlers.NewSessionCookies(cfg.Auth.TokenTTL, cfg.IsProduction())

	provider := guard.NewLocalProvider(cfg.Guard)
	gate := guard.NewGate(provider, roleResolver(signer, cookies), cfg.Guard, logger, publisher)

	authHandler := handlers.NewAuthHandler(authService, signer, cookies, publisher, logger)
	userHandler := handlers.NewUserHandler(userService, publisher, logger)
	authMiddleware := handlers.RequireAuth(signer, cookies)

	srv := &Server{
		db:        dbConn,
		publisher: publisher,
		provider:  provider,
		logger:    logger,
		startedAt: time.Now(),
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		gate.Middleware,
	)
	router.Get("/health", srv.health)
	router.Get("/api", srv.apiInfo)
	handlers.AuthRouter(router, authHandler)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userHandler, authMiddleware)
	})
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Route not found"})
	})
	srv.router = router

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// Router exposes the chi router for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.provider != nil {
		_ = s.provider.Close()
	}
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

func (s *Server) apiInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Acquisitions API is running"})
}

// roleResolver derives the caller's rate tier from the session cookie on a
// best-effort basis. Invalid or absent tokens resolve to guest; rejecting
// them is the auth middleware's job, not the gate's.
func roleResolver(signer *token.Signer, cookies handlers.SessionCookies) guard.RoleResolver {
	return func(r *http.Request) string {
		tokenString, ok := cookies.Read(r)
		if !ok {
			return guard.RoleGuest
		}
		claims, err := signer.Verify(tokenString)
		if err != nil {
			return guard.RoleGuest
		}
		return claims.Role
	}
}

func eventsBackend(ctx context.Context, cfg config.EventsConfig) (events.Backend, error) {
	switch cfg.Backend {
	case "rabbitmq":
		return events.NewRabbitMQBackend(cfg.RabbitMQ)
	case "pubsub":
		return events.NewPubSubBackend(ctx, cfg.PubSub)
	case "":
		return events.NoopBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
