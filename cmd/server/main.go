package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neexbeast/skycast/internal/api"
	"github.com/neexbeast/skycast/internal/app"
	"github.com/neexbeast/skycast/internal/config"
	"github.com/neexbeast/skycast/internal/genai"
	"github.com/neexbeast/skycast/internal/geo"
	"github.com/neexbeast/skycast/internal/metrics"
	"github.com/neexbeast/skycast/internal/panels"
	"github.com/neexbeast/skycast/internal/prefs"
	"github.com/neexbeast/skycast/internal/storage"
	"github.com/neexbeast/skycast/internal/weather"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

// prefsBackend is a preference KV that can report its health.
type prefsBackend interface {
	prefs.KV
	api.Pinger
}

// openPrefsBackend connects the configured preference store. The returned closer
// releases the connection.
func openPrefsBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (prefsBackend, io.Closer, error) {
	switch cfg.PrefsBackend {
	case config.BackendPostgres:
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		n, err := storage.RunMigrations(ctx, pool, cfg.MigrationsDir, log)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied", "count", n)
		return storage.NewRepository(pool), closerFunc(func() error { pool.Close(); return nil }), nil

	default:
		client, err := prefs.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return prefs.NewRedisKV(client), client, nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	backend, closer, err := openPrefsBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	log.Info("preference store connected", "backend", cfg.PrefsBackend)

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	locator, err := geo.New(geo.Options{
		Mode:      cfg.GeolocationMode,
		Latitude:  cfg.GeolocationLat,
		Longitude: cfg.GeolocationLon,
		URL:       cfg.GeoIPURL,
	})
	if err != nil {
		return fmt.Errorf("configuring geolocation: %w", err)
	}

	// Wire dependencies.
	model := genai.New(genai.Config{
		BaseURL: cfg.GeminiBaseURL,
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.QueryTimeout,
	}, log)
	weatherClient := weather.NewClient(model, m, log)
	store := prefs.NewStore(backend, log)

	orch := app.New(app.Options{
		Fetcher:         weatherClient,
		Store:           store,
		Locator:         locator,
		Metrics:         m,
		Log:             log,
		RefreshInterval: cfg.RefreshInterval,
		QueryTimeout:    cfg.QueryTimeout,
	})
	defer func() { _ = orch.Close() }()

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	panelService := panels.New(weatherClient, cfg.PanelCacheTTL, cfg.QueryTimeout, log)
	handlers := api.NewHandlers(orch, panelService, api.BuildInfo{Version: version, Model: model.Model()}, log)
	router := api.NewRouter(handlers, backend, m.Handler(), log)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Model calls can take most of QueryTimeout; event streams clear their own deadline.
		WriteTimeout: cfg.QueryTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv.RegisterOnShutdown(handlers.Close)

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port, "model", model.Model(), "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}
