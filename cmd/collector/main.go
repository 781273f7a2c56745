package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradecollector/config"
	"tradecollector/internal/api"
	"tradecollector/internal/bitget/collector"
	"tradecollector/internal/cache"
	"tradecollector/internal/metrics"
	"tradecollector/internal/query"
	"tradecollector/logger"
	"tradecollector/pkg/bitget"
	"tradecollector/pkg/messaging/tradebus"
	"tradecollector/pkg/storage/filestore"
	"tradecollector/pkg/storage/postgres"
	"tradecollector/pkg/storage/rediscache"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	if !cfg.Collector.Enabled && !cfg.API.Enabled {
		log.Fatal("nothing to run: collector.enabled and api.enabled are both false")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := filestore.New(cfg.Store.Path)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	g, gctx := errgroup.WithContext(ctx)

	closeSinks := func() {}
	if cfg.Collector.Enabled {
		var sinks []collector.Sink
		sinks, closeSinks = buildSinks(gctx, cfg, log.Named("sink"))

		c := collector.New(cfg, store, m, sinks, log.Named("collector"))
		g.Go(func() error {
			return runCollector(gctx, c, cfg, log.Named("collector"))
		})
	}

	if cfg.API.Enabled {
		rc := cache.New(store, cfg.API.CacheTTL, m, log.Named("cache"))
		svc := query.NewService(rc, query.Limits{
			MaxRecordsPerRequest: cfg.API.MaxRecordsPerRequest,
			LatestMaxLimit:       cfg.API.LatestMaxLimit,
			FreshWithin:          cfg.API.FreshWithin,
			StaleWithin:          cfg.API.StaleWithin,
		})
		srv := api.NewServer(cfg.API, cfg.Metrics, svc, m, log.Named("api"))
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	closeSinks()
	if err != nil {
		log.Error("exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// runCollector runs ingestion until ctx is cancelled. If the feed gives up
// reconnecting, the API (when enabled) keeps serving what was stored.
func runCollector(ctx context.Context, c *collector.Collector, cfg *config.Config, log *zap.Logger) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	stopCollector := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Collector.SinkTimeout+5*time.Second)
		defer cancel()
		return c.Stop(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		return stopCollector()
	case <-c.FeedDone():
	}

	if !cfg.API.Enabled {
		_ = stopCollector()
		return bitget.ErrReconnectsExhausted
	}
	log.Warn("ingestion stopped, API keeps serving stored trades")
	<-ctx.Done()
	return stopCollector()
}

// buildSinks connects every enabled mirror. A sink that cannot be reached at
// startup is skipped; the trade file stays the source of truth.
func buildSinks(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]collector.Sink, func()) {
	var (
		sinks   []collector.Sink
		closers []func() error
	)

	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrateTradeRecord(cfg.Postgres, cfg.Log.Environment)
		if err != nil {
			log.Error("postgres sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, &postgres.TradeSink{Client: client})
			closers = append(closers, client.Close)
		}
	}

	if cfg.Redis.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rc, err := rediscache.New(pingCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LatestTTL, cfg.Redis.RecentLimit)
		cancel()
		if err != nil {
			log.Error("redis sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, rc)
			closers = append(closers, rc.Close)
		}
	}

	if cfg.Kafka.Enabled {
		pub := tradebus.NewPublisher(tradebus.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			MaxAttempts:  cfg.Kafka.MaxAttempts,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, log)
		sinks = append(sinks, pub)
		closers = append(closers, pub.Close)
	}

	for _, s := range sinks {
		log.Info("trade sink enabled", zap.String("sink", s.Name()))
	}
	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("failed to close sink", zap.Error(err))
			}
		}
	}
}
