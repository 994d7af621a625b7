/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Initialize the document store (memory, sqlite or mongo)
  3. Create the ledger manager, load state, start the sync worker
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION (environment, .env honored):
  PORT                     HTTP server port (default: 8080)
  STORE_DRIVER             memory | sqlite | mongo (default: memory)
  SQLITE_PATH              SQLite database path, ":memory:" supported
  MONGO_URI                MongoDB connection string
  MONGO_DATABASE           MongoDB database name
  LEDGER_USER_ID           Document owner id (default: local)
  OPENAI_API_KEY           Enables the AI endpoints when set
  DEFAULT_TIMEZONE         IANA zone for fresh ledgers

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush queued writes to the store
  4. Close the store and exit

SEE ALSO:
  - api/server.go: Router configuration
  - ledger/manager.go: State manager and sync queue
  - config/config.go: Environment loading
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plutus/ledger-engine/ai"
	"github.com/plutus/ledger-engine/api"
	"github.com/plutus/ledger-engine/config"
	"github.com/plutus/ledger-engine/ledger"
	memstore "github.com/plutus/ledger-engine/ledger/store"
	"github.com/plutus/ledger-engine/store/mongo"
	"github.com/plutus/ledger-engine/store/sqlite"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	var (
		docStore ledger.DocumentStore
		closer   func() error
	)
	switch cfg.StoreDriver {
	case "memory":
		docStore = memstore.NewMemory()
	case "sqlite":
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			log.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		docStore, closer = st, st.Close
	case "mongo":
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		st, err := mongo.Connect(connectCtx, cfg.MongoURI, cfg.MongoDB, log)
		connectCancel()
		if err != nil {
			log.Error("failed to connect to mongo", "error", err)
			os.Exit(1)
		}
		docStore = st
		closer = func() error { return st.Close(context.Background()) }
	default:
		log.Error("unknown STORE_DRIVER", "driver", cfg.StoreDriver)
		os.Exit(1)
	}

	// Initialize the ledger manager
	defaults := ledger.Settings{
		Currency:       cfg.DefaultCurrency,
		CurrencySymbol: cfg.DefaultSymbol,
		Timezone:       cfg.DefaultTimezone,
	}
	manager := ledger.NewManager(docStore, cfg.UserID,
		ledger.WithLogger(log),
		ledger.WithDefaultSettings(defaults),
	)
	if err := manager.Load(ctx); err != nil {
		log.Error("failed to load ledger state", "error", err)
		os.Exit(1)
	}
	manager.Start(ctx)

	// AI client is optional; without a key the endpoints degrade gracefully.
	var aiClient *ai.Client
	if cfg.OpenAIKey != "" {
		aiClient = ai.NewClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}

	handler := api.NewHandler(manager, aiClient)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.ReqTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port), "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	// Push anything still queued before the store goes away.
	manager.Flush(shutdownCtx)
	cancel()

	if closer != nil {
		if err := closer(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}

	log.Info("server stopped")
}
