package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netmap-server/internal/auth"
	"netmap-server/internal/config"
	"netmap-server/internal/handler"
	"netmap-server/internal/lock"
	"netmap-server/internal/middleware"
	"netmap-server/internal/observability"
	"netmap-server/internal/ratelimit"
	"netmap-server/internal/service"
	"netmap-server/internal/session"
	"netmap-server/internal/store"
	"netmap-server/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting netmap server")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		slog.Error("failed to create data directory",
			slog.String("dir", cfg.DataDir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	lockManager, err := lock.NewManager(cfg.LockPath(), cfg.LockTTL)
	if err != nil {
		slog.Error("failed to initialize edit lock", slog.String("error", err.Error()))
		os.Exit(1)
	}

	documents, err := store.NewStore(cfg.DocumentPath())
	if err != nil {
		slog.Error("failed to initialize document store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := documents.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("document committer error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("document committer started", slog.String("path", cfg.DocumentPath()))

	hub := websocket.NewHub()
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("event hub started")

	go lockManager.Watch(ctx, 30*time.Second, func(editor string) {
		hub.Publish(websocket.Event{Type: websocket.EventLockExpired, Editor: editor})
	})

	sessions := session.NewStore(cfg.SessionTimeout)
	go sessions.Run(ctx, time.Hour)

	loginLimiter := ratelimit.NewLoginLimiter(ratelimit.DefaultConfig())
	go loginLimiter.Run(ctx, 10*time.Minute)

	verifier := auth.NewVerifier(cfg.AdminUser, cfg.AdminPasswordHash)
	authService := service.NewAuthService(verifier, loginLimiter, sessions)
	editService := service.NewEditService(lockManager, documents, cfg.MaxDocumentBytes)

	origins := middleware.ParseOrigins(cfg.AllowedOrigins)

	authHandler := handler.NewAuthHandler(authService, cfg.IsProduction())
	lockHandler := handler.NewLockHandler(editService, hub)
	documentHandler := handler.NewDocumentHandler(editService, hub, cfg.MaxDocumentBytes)
	healthHandler := handler.NewHealthHandler(cfg.DataDir, cfg.LockPath())
	eventsHandler := handler.NewEventsHandler(hub, editService, origins)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(origins))
	r.Use(middleware.Metrics())
	r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig()))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.Route("/api/v1", func(r chi.Router) {
		loginThrottle := middleware.NewRequestLimiter(ctx, 2, 5)
		apiThrottle := middleware.NewRequestLimiter(ctx, 20, 50)

		// Read-only state is public: viewers browse the floor plan and
		// watch the lock without logging in.
		r.Group(func(r chi.Router) {
			r.Use(apiThrottle.Middleware())
			r.Get("/auth", authHandler.Check)
			r.Get("/lock", lockHandler.Status)
			r.Get("/document", documentHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(loginThrottle.Middleware())
			r.Post("/auth/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessions))
			r.Use(middleware.CSRF())
			r.Use(apiThrottle.Middleware())

			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/lock", lockHandler.Action)
			r.Post("/document", documentHandler.Commit)
		})
	})

	// Origin checking handled by the upgrader.
	r.Get("/ws/events", eventsHandler.HandleConnection)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("netmap server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	// Stop the background loops after in-flight requests have drained so
	// late commits still reach the committer.
	cancel()
	time.Sleep(100 * time.Millisecond)

	slog.Info("server stopped gracefully")
}
