// Package server implements the drawing API: accounts, one stored drawing
// per user, and a websocket feed announcing when that drawing changes.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"ShapeBoard/internal/api"
	"ShapeBoard/internal/config"
	shapenet "ShapeBoard/internal/net"
	"ShapeBoard/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// Server serves the drawing API.
type Server struct {
	cfg        config.ServerConfig
	repo       storage.Repository
	tokens     *TokenService
	hub        *shapenet.Hub
	validate   *validator.Validate
	metrics    *Metrics
	logger     *log.Logger
	now        func() time.Time
	maxBody    int64
	bcryptCost int
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now for stored timestamps and token issuance.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
		s.tokens.now = now
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// New creates a server backed by repo.
func New(cfg config.ServerConfig, repo storage.Repository, logger *log.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	tokens, err := NewTokenService(cfg.JWTSecret, cfg.TokenTTL.Duration)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		repo:       repo,
		tokens:     tokens,
		hub:        shapenet.NewHub(logger),
		validate:   validator.New(),
		metrics:    NewMetrics(),
		logger:     logger.WithPrefix("server"),
		now:        time.Now,
		maxBody:    cfg.MaxBodyBytes,
		bcryptCost: bcrypt.DefaultCost,
	}
	if s.maxBody <= 0 {
		s.maxBody = 1 << 20
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the router with all middleware and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger.WithPrefix("http")))
	r.Use(s.metrics.middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Post(api.PathRegister, s.register)
	r.Post(api.PathLogin, s.login)
	r.Post(api.PathLogout, s.logout)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(false))
		r.Put(api.PathDrawing, s.putDrawing)
		r.Get(api.PathDrawing, s.getDrawing)
	})
	r.With(s.authenticate(true)).Get(api.PathDrawingEvents, s.drawingEvents)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String(), "storage", s.cfg.Storage)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	// hijacked websocket connections are not tracked by Shutdown
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// OpenRepository connects the storage backend named by cfg.Storage.
func OpenRepository(ctx context.Context, cfg config.ServerConfig) (storage.Repository, error) {
	switch cfg.Storage {
	case config.StorageMemory, "":
		return storage.NewMemoryStore(), nil
	case config.StorageRedis:
		repo, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StorageMongo:
		repo, err := storage.NewMongoStore(ctx, storage.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}
