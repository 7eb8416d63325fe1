// Package server is the composition root: it wires the database, storage
// backend, services, and handlers together and owns the route table.
//
// main.go stays minimal (read config, call New, call Start); everything
// that decides which URL runs which code lives here, so the whole HTTP
// surface can be read in one place.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/qr-genius/internal/auth"
	"github.com/sakif/qr-genius/internal/handler"
	"github.com/sakif/qr-genius/internal/mail"
	"github.com/sakif/qr-genius/internal/middleware"
	"github.com/sakif/qr-genius/internal/qr"
	sqliteRepo "github.com/sakif/qr-genius/internal/repository/sqlite"
	"github.com/sakif/qr-genius/internal/service"
	"github.com/sakif/qr-genius/internal/storage"
)

// Config holds everything the server needs to start. main.go fills it
// from environment variables; tests fill it directly.
type Config struct {
	Port          int
	DBPath        string
	PublicURL     string // external base URL used in download and reset links
	SessionSecret string
	SessionTTL    time.Duration
	BcryptCost    int

	// StorageBackend selects where images live: "local" (default) or "s3".
	StorageBackend string
	StorageDir     string // local backend: directory for image files
	S3Bucket       string
	S3Region       string
	S3Endpoint     string // set for S3-compatible stores (MinIO etc.); empty for AWS

	// GitHub OAuth is optional; the routes are only registered when both
	// client credentials are present.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → services → handlers → routes
//
// Each layer receives interfaces, not concrete types, so any piece can be
// swapped in tests. Constructor failures here (bad secret, unreachable
// bucket, unwritable storage dir) abort startup — better a loud exit than
// a server that 500s on its first request.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// newStore picks the image storage backend from config.
func (s *Server) newStore() (storage.Store, error) {
	switch strings.ToLower(s.config.StorageBackend) {
	case "", "local":
		dir := s.config.StorageDir
		if dir == "" {
			dir = "data/qr_codes"
		}
		return storage.NewLocalStore(dir)
	case "s3":
		if s.config.S3Bucket == "" {
			return nil, fmt.Errorf("S3 backend selected but no bucket configured")
		}
		return storage.NewS3Store(context.Background(),
			s.config.S3Bucket, s.config.S3Region, s.config.S3Endpoint)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.config.StorageBackend)
	}
}

// setupRoutes wires middleware, services, and the route table.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                     → liveness + database check
//	POST /api/register                → create account
//	POST /api/login                   → start session (cookie)
//	POST /api/forgot_password         → request reset link
//	POST /api/reset_password/{token}  → complete reset
//	POST /api/logout                  → end session            [auth]
//	GET  /api/me                      → current account        [auth]
//	POST /api/generate_qr             → create QR record       [auth]
//	GET  /api/my_qrs                  → list own records       [auth]
//	DELETE /api/delete_qr/{id}        → delete own record      [auth]
//	GET  /download_qr/{id}            → stream image bytes     [auth]
//	GET  /auth/github/login+callback  → OAuth flow (when configured)
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	publicURL := s.config.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://localhost:%d", s.config.Port)
	}

	tokens, err := auth.NewTokenService(s.config.SessionSecret, s.config.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)

	store, err := s.newStore()
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}

	mailer := mail.NewLogMailer(s.logger, publicURL)

	authService := service.NewAuthService(s.db, tokens, passwords, mailer, s.logger)
	qrService := service.NewQRCodeService(s.db, store, qr.NewEncoder(), publicURL, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}

	authHandler := handler.NewAuthHandler(authService, github, tokens.SessionTTL(), s.logger)
	qrHandler := handler.NewQRCodeHandler(qrService, s.logger)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/forgot_password", authHandler.HandleForgotPassword)
		r.Post("/reset_password/{token}", authHandler.HandleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/generate_qr", qrHandler.HandleGenerate)
			r.Get("/my_qrs", qrHandler.HandleList)
			r.Delete("/delete_qr/{id}", qrHandler.HandleDelete)
		})
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/download_qr/{id}", qrHandler.HandleDownload)
	})

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Info("GitHub OAuth not configured — /auth/github routes disabled")
	}

	return nil
}

// handleHealth reports liveness. It pings the database so a wedged SQLite
// file shows up here before it shows up as user-facing 500s.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Start runs the HTTP server until SIGINT/SIGTERM and then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database (flushes the WAL, releases the file lock).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("storage", s.config.StorageBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
