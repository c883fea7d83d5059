// ABOUTME: Gateway orchestrator wiring the HTTP server, store, and services
// ABOUTME: Manages route registration, startup, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fabworks/iqc-gateway/internal/auth"
	"github.com/fabworks/iqc-gateway/internal/chat"
	"github.com/fabworks/iqc-gateway/internal/config"
	"github.com/fabworks/iqc-gateway/internal/conversation"
	"github.com/fabworks/iqc-gateway/internal/dataset"
	"github.com/fabworks/iqc-gateway/internal/store"
)

// Gateway orchestrates the iqc-gateway server components. It owns the HTTP
// server, the store, and the chat and auth services built on top of it.
type Gateway struct {
	config     *config.Config
	store      store.Store
	authSvc    *auth.Service
	chatSvc    *chat.Service
	verifier   *auth.JWTVerifier
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("IQC_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	return newWithStore(cfg, s, logger), nil
}

// newWithStore assembles the gateway around an existing store. Split out so
// tests can inject an in-memory store.
func newWithStore(cfg *config.Config, s store.Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	manager := conversation.NewManager(s, nil, logger)
	executor := dataset.NewExecutor(logger)

	g := &Gateway{
		config:   cfg,
		store:    s,
		authSvc:  auth.NewService(s, verifier, logger),
		chatSvc:  chat.NewService(s, manager, executor, logger),
		verifier: verifier,
		logger:   logger.With("component", "gateway"),
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// routes builds the HTTP mux. Auth endpoints and health checks are open;
// everything under /api besides auth requires a bearer token.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	// Help documentation - rendered from embedded markdown
	mux.HandleFunc("/api/help", g.handleHelp)
	mux.HandleFunc("/api/help/", g.handleHelp)

	// Auth endpoints establish identity, so they sit outside the middleware
	mux.HandleFunc("/api/auth/register", g.handleRegister)
	mux.HandleFunc("/api/auth/login", g.handleLogin)
	mux.HandleFunc("/api/auth/verify", g.handleVerifyToken)
	mux.HandleFunc("/api/auth/refresh", g.handleRefreshToken)

	authMiddleware := auth.HTTPAuthMiddleware(g.verifier)
	mux.Handle("/api/chatrooms", authMiddleware(http.HandlerFunc(g.handleChatRooms)))
	mux.Handle("/api/chatrooms/", authMiddleware(http.HandlerFunc(g.handleChatRoomRoutes)))
	mux.Handle("/api/chat", authMiddleware(http.HandlerFunc(g.handleChat)))
	mux.Handle("/api/edit_message", authMiddleware(http.HandlerFunc(g.handleEditMessage)))

	return mux
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the store answers queries.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := g.store.ListChatRooms(r.Context(), "healthcheck"); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
