package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rpattn/medallion-catalog/internal/catalog"
	"github.com/rpattn/medallion-catalog/internal/config"
	"github.com/rpattn/medallion-catalog/internal/export"
	"github.com/rpattn/medallion-catalog/internal/httpapi"
	"github.com/rpattn/medallion-catalog/internal/logging"
	"github.com/rpattn/medallion-catalog/internal/middleware"
	"github.com/rpattn/medallion-catalog/internal/query"
	"github.com/rpattn/medallion-catalog/internal/session"
)

func main() {
	configPath := os.Getenv("CATALOG_CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	cfg, loaded, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if !loaded {
		logger.Info("no config file found, using defaults and environment", zap.String("path", configPath))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := catalog.LoadDir(cfg.Catalog.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to load catalogs", zap.String("dir", cfg.Catalog.Dir), zap.Error(err))
	}

	var engineOpts []query.Option
	if cfg.Export.ByteOrderMark {
		engineOpts = append(engineOpts, query.WithCSVOptions(export.CSVOptions{ByteOrderMark: true}))
	}

	sessions := session.NewStore(
		session.WithTTL(cfg.Session.TTL),
		session.WithEngineOptions(engineOpts...),
	)
	go sweepSessions(ctx, sessions, cfg.Session.SweepInterval, logger)

	exports := export.NewService(export.NewFileSink(cfg.Export.Dir), export.WithLogger(logger))
	api := httpapi.NewHandler(registry, sessions, exports, logger, httpapi.WithEngineOptions(engineOpts...))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
	})

	handler := middleware.LoggingMiddleware(logger)(
		middleware.DataLoaderMiddleware(registry)(api),
	)

	mux := http.NewServeMux()
	mux.Handle("/catalogs", corsHandler.Handler(handler))
	mux.Handle("/catalogs/", corsHandler.Handler(handler))
	mux.Handle("/sessions", corsHandler.Handler(handler))
	mux.Handle("/sessions/", corsHandler.Handler(handler))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting catalog server",
			zap.String("addr", cfg.Server.Addr),
			zap.Int("catalogs", registry.Len()))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// sweepSessions drops idle sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, store *session.Store, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.Sweep(); removed > 0 {
				logger.Debug("expired sessions removed", zap.Int("count", removed))
			}
		}
	}
}
