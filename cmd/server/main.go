/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the envelope budgeting server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env honored)
  2. Build the logger
  3. Assemble the service graph via factory.Build
  4. Configure the HTTP router
  5. Start the server with graceful shutdown

CONFIGURATION:
  Everything comes from environment variables with defaults, see
  config.Load. The interesting ones:
    HTTP_ADDR        listen address (default :8080)
    DATABASE_DRIVER  sqlite or memory
    DATABASE_PATH    sqlite file, ":memory:" works
    AMQP_URL         enables event publishing when set
    LOG_LEVEL        trace/debug/info/warn/error
    LOG_FORMAT       console or json

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop cache janitor, close publisher and store
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - factory/factory.go: Dependency wiring
  - config/config.go: Environment keys
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thelarryrutledge/nvlp-app-sub004/api"
	"github.com/thelarryrutledge/nvlp-app-sub004/config"
	"github.com/thelarryrutledge/nvlp-app-sub004/factory"
	"github.com/thelarryrutledge/nvlp-app-sub004/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	svc, cleanup, err := factory.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("building service")
	}
	defer cleanup()

	handler := api.NewHandler(svc, log)
	router := api.NewRouter(handler, log)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
