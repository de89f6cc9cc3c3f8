/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Workforce Hub form service.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (flags, env, file)
  2. Build the logger
  3. Load form definitions (embedded or forms_dir)
  4. Pick the backend: HTTP client, or SQLite-backed sandbox
  5. Wire coordinator, session registry and sweeper
  6. Configure HTTP router and start the server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and close every session
  4. Close the database
  5. Exit

EXAMPLES:
  # Standalone, requests stored in ./workforce.db
  ./server

  # In-memory sandbox on another port
  ./server --db=":memory:" --port=3000

  # Forward to the real HR backend
  WORKFORCE_HUB_BACKEND_URL=https://hr.example.com ./server

SEE ALSO:
  - config/config.go: All settings
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/workforce-hub/api"
	"github.com/warp/workforce-hub/client"
	"github.com/warp/workforce-hub/config"
	"github.com/warp/workforce-hub/form"
	"github.com/warp/workforce-hub/logger"
	"github.com/warp/workforce-hub/requests"
	"github.com/warp/workforce-hub/store/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "workforce-hub: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.ConfigFile != "" {
		log.Infow("config file loaded", "path", cfg.ConfigFile)
	}

	// Form definitions
	catalog, err := loadCatalog(cfg.FormsDir)
	if err != nil {
		return err
	}
	log.Infow("forms loaded", "count", len(catalog.List()), "dir", cfg.FormsDir)

	// Backend
	metrics := api.NewMetrics()
	var (
		backend form.Collaborator
		sandbox *api.Sandbox
	)
	if cfg.UseSandbox() {
		st, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer st.Close()

		sandbox = api.NewSandbox(st, log)
		backend = sandbox
		log.Infow("using sandbox backend", "db", cfg.DBPath)
	} else {
		c, err := client.New(client.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout})
		if err != nil {
			return err
		}
		backend = c
		log.Infow("using HR backend", "url", cfg.BackendURL, "timeout", cfg.BackendTimeout.String())
	}

	// Sessions
	sessions := api.NewRegistry(metrics)
	sweeper := api.NewSessionSweeper(sessions, log)
	sweeper.TTL = cfg.SessionTTL
	sweeper.CheckInterval = cfg.SweepInterval
	sweeper.Start()

	handler := api.NewHandler(api.Options{
		Catalog:        catalog,
		Sessions:       sessions,
		Coordinator:    form.NewCoordinator(metrics.Instrument(backend), log),
		Sandbox:        sandbox,
		Metrics:        metrics,
		Logger:         log,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Infow("shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			sweeper.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownErr := server.Shutdown(ctx)
	sweeper.Stop()
	sessions.CloseAll()

	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}
	log.Infow("server stopped")
	return nil
}

func loadCatalog(dir string) (*requests.Catalog, error) {
	if dir == "" {
		return requests.DefaultCatalog()
	}
	return requests.NewCatalog(os.DirFS(dir))
}
