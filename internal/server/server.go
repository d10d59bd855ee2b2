package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/librarium/usermanagement/config"
	"github.com/librarium/usermanagement/internal/auth"
	"github.com/librarium/usermanagement/internal/db"
	"github.com/librarium/usermanagement/internal/handlers"
	"github.com/librarium/usermanagement/internal/logging"
	"github.com/librarium/usermanagement/internal/mq"
	"github.com/librarium/usermanagement/internal/services"
	"github.com/librarium/usermanagement/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *slog.Logger
}

// New constructs a Server from cfg. It fails when the configuration is
// invalid, in particular when no token signing key is set.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log, os.Stdout)

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	policy, err := auth.NewDeletePolicy(cfg.Auth.DeletePolicy)
	if err != nil {
		return nil, err
	}

	var (
		dbConn *sql.DB
		repo   services.AccountRepository
		health handlers.Pinger
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory account store; accounts are lost on restart")
		repo = store.NewMemoryAccountRepository()
	default:
		dbConn, err = db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		repo = store.NewAccountRepository(dbConn)
		health = dbConn
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		if dbConn != nil {
			_ = dbConn.Close()
		}
		return nil, err
	}
	var events services.EventPublisher
	if queue != nil {
		events = queue
	}

	accountService := services.NewAccountService(
		repo,
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		issuer,
		policy,
		events,
		logger,
	)

	router := NewRouter(accountService, handlers.RequireAuth(issuer, logger), health, cfg.CORS)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

// NewRouter builds the HTTP routes around an account service. Cross-origin
// requests are allowed only from corsCfg.AllowedOrigins.
func NewRouter(
	accounts *services.AccountService,
	authMiddleware func(http.Handler) http.Handler,
	health handlers.Pinger,
	corsCfg config.CORSConfig,
) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		cors.Handler(cors.Options{
			AllowedOrigins: corsCfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(health))
	router.Route("/api/users", func(r chi.Router) {
		handlers.AccountRouter(r, accounts, authMiddleware)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
