/*
Package factory builds the service dependency graph from configuration.

PURPOSE:
  One place that knows how to turn a *config.Config into a running
  *service.Service: store selection, cache and its janitor, the retry
  wrapper, and the event publisher. cmd/server stays a thin shell and
  tests can build the same graph against the in-memory store.

SELECTION RULES:
  DATABASE_DRIVER=sqlite  -> store/sqlite (file or :memory:)
  DATABASE_DRIVER=memory  -> ledger/store in-memory implementation
  AMQP_URL set            -> events.NewAMQP, otherwise events.Disabled

The returned cleanup function stops the cache manager and closes the
publisher and the store, in that order.
*/
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/thelarryrutledge/nvlp-app-sub004/cache"
	"github.com/thelarryrutledge/nvlp-app-sub004/config"
	"github.com/thelarryrutledge/nvlp-app-sub004/events"
	"github.com/thelarryrutledge/nvlp-app-sub004/ledger"
	ledgerstore "github.com/thelarryrutledge/nvlp-app-sub004/ledger/store"
	"github.com/thelarryrutledge/nvlp-app-sub004/resilience"
	"github.com/thelarryrutledge/nvlp-app-sub004/service"
	"github.com/thelarryrutledge/nvlp-app-sub004/store/sqlite"
)

// Build assembles the service from configuration. The cleanup function
// is safe to call exactly once, after the HTTP server has drained.
func Build(cfg *config.Config, log zerolog.Logger) (*service.Service, func(), error) {
	store, closeStore, err := buildStore(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	c := cache.New(cfg.CacheMaxEntries)
	manager := cache.NewManager(log)
	manager.Register(c)
	manager.Start(cfg.CacheCleanupInterval)

	publisher, err := buildPublisher(cfg, log)
	if err != nil {
		manager.Stop()
		closeStore()
		return nil, nil, err
	}

	res := resilience.New(nil, resilience.Options{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	}, log)

	svc := service.New(service.Options{
		Store:     store,
		Cache:     c,
		CacheTTL:  cfg.CacheTTL,
		Resilient: res,
		Events:    publisher,
		Logger:    log,
	})

	cleanup := func() {
		manager.Stop()
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("closing event publisher")
		}
		closeStore()
	}
	return svc, cleanup, nil
}

func buildStore(cfg *config.Config, log zerolog.Logger) (ledger.TxStore, func(), error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		s, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		log.Info().Str("path", cfg.DatabasePath).Msg("sqlite store ready")
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn().Err(err).Msg("closing store")
			}
		}, nil
	case "memory":
		log.Info().Msg("using in-memory store, data will not survive restarts")
		return ledgerstore.NewTxMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

func buildPublisher(cfg *config.Config, log zerolog.Logger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		log.Info().Msg("event publishing disabled")
		return events.Disabled{}, nil
	}
	p, err := events.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
	if err != nil {
		return nil, fmt.Errorf("connecting event publisher: %w", err)
	}
	log.Info().Str("exchange", cfg.AMQPExchange).Msg("event publisher connected")
	return p, nil
}
