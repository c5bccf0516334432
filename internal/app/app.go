package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-image-playground/internal/config"
	"go-image-playground/internal/handler"
	"go-image-playground/internal/middleware"
	"go-image-playground/internal/router"
	"go-image-playground/internal/service"
	"go-image-playground/internal/template"
	"go-image-playground/internal/upstream"
	"go-image-playground/internal/web"
)

type App struct {
	server *http.Server
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := template.NewStore(cfg.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize template store: %w", err)
	}
	slog.Info("prompt templates ready", "dir", store.DirAbs())

	// An API key short-circuits the credential chain; tokens are only
	// resolved for keyless deployments.
	var tokens upstream.TokenProvider
	if cfg.APIKey == "" {
		tokens = upstream.NewCachedTokenProvider(upstream.DetectTokenProvider())
		slog.Info("using Azure credential chain for upstream authentication")
	} else {
		slog.Info("using configured API key for upstream authentication")
	}
	forwarder := upstream.NewClient(cfg.Endpoint, cfg.Deployment, cfg.APIVersion, cfg.APIKey, tokens)

	authService := service.NewAuthService(cfg.AuthUsername, cfg.AuthPassword, cfg.IsProduction())
	sessionGate := middleware.NewSessionGate(authService)

	pages, err := web.NewPages()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pages: %w", err)
	}

	appRouter := router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Template: handler.NewTemplateHandler(store),
		Edit:     handler.NewEditHandler(forwarder, cfg.MaxUploadSize),
		Pages:    pages,
	}, sessionGate, cfg.CORSOrigins)

	if cfg.TelemetryConnectionString != "" {
		slog.Info("telemetry connection string configured; metrics exposed at /metrics")
	}

	// WriteTimeout stays unset: streamed edits hold the response open for
	// the full upstream attempt window.
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
