/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rota engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env + environment), then apply command-line flags
  2. Build the zap logger
  3. Initialize SQLite store, seed the doctor roster when empty
  4. Wire payment simulator, Gemini assistant and rota.Service
  5. Start the deadline scheduler and the HTTP server

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (APP_PORT, default 8080)
  -db      SQLite database path (APP_DB_PATH, default rota.db)
           Use ":memory:" for in-memory database
  -seed    Seed the demo doctor roster into an empty store (default true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections, wait for active requests
  3. Close database connection

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/rota-engine/api"
	"github.com/warp/rota-engine/assistant"
	"github.com/warp/rota-engine/config"
	"github.com/warp/rota-engine/logger"
	"github.com/warp/rota-engine/payment"
	"github.com/warp/rota-engine/rota"
	"github.com/warp/rota-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.App.DBPath, "SQLite database path")
	seed := flag.Bool("seed", true, "Seed the demo doctor roster into an empty store")
	flag.Parse()

	log := logger.NewZapLogger(cfg.Logger.Level, cfg.App.Env)
	defer log.Sync()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.String("path", *dbPath), zap.Error(err))
	}
	defer store.Close()

	if *seed {
		if err := seedDoctors(context.Background(), store); err != nil {
			log.Warn("failed to seed doctors", zap.Error(err))
		}
	}

	payments := payment.NewSimulator(
		payment.WithLatency(cfg.Payment.Latency),
		payment.WithFailure(cfg.Payment.Fail),
		payment.WithSecretKey(cfg.Payment.SecretKey),
		payment.WithLogger(log.Named("payment")),
	)
	ai := assistant.NewClient(cfg.Gemini.APIKey,
		assistant.WithModel(cfg.Gemini.Model),
		assistant.WithBaseURL(cfg.Gemini.BaseURL),
		assistant.WithHTTPClient(&http.Client{Timeout: cfg.Gemini.Timeout}),
		assistant.WithLogger(log.Named("assistant")),
	)
	if cfg.Gemini.APIKey == "" {
		log.Warn("GEMINI_API_KEY is not set, assistant endpoints will return fallbacks")
	}
	svc := rota.NewService(store, payments, rota.WithLogger(log.Named("rota")))

	var scheduler *api.DeadlineScheduler
	if cfg.Scheduler.DeadlineSweep != "" {
		scheduler, err = api.NewDeadlineScheduler(svc, cfg.Scheduler.DeadlineSweep, log.Named("scheduler"))
		if err != nil {
			log.Fatal("invalid deadline sweep schedule", zap.String("schedule", cfg.Scheduler.DeadlineSweep), zap.Error(err))
		}
		scheduler.Start()
	}

	handler := api.NewHandler(svc, ai, log.Named("api"))
	router := api.NewRouter(handler, api.RouterOptions{
		AssistantRequestsPerMinute: cfg.App.AssistantRequestsPerMinute,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Gemini.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.Int("port", *port), zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
