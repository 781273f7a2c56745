package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradecollector/config"
	"tradecollector/internal/bitget/memorystore"
	"tradecollector/internal/bitget/snapshot"
	"tradecollector/internal/bitget/stream"
	"tradecollector/internal/metrics"
	"tradecollector/pkg/bitget"
	"tradecollector/pkg/storage/filestore"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sink mirrors newly flushed trades to a secondary store. Sinks are
// best-effort: a failing sink is logged and never affects the trade file.
type Sink interface {
	Name() string
	WriteTrades(ctx context.Context, records []memorystore.TradeRecord) error
}

// Flush triggers, used as a log field.
const (
	triggerThreshold = "threshold"
	triggerInterval  = "interval"
	triggerFeedDown  = "feed_stopped"
	triggerShutdown  = "shutdown"
)

// Collector ingests Bitget trades into the in-memory buffer and persists the
// buffer to the trade file, rotating it once it grows past the record cap.
type Collector struct {
	cfg     *config.Config
	store   *filestore.Store
	buffer  *memorystore.TradeBuffer
	metrics *metrics.Metrics
	sinks   []Sink
	logger  *zap.Logger
	now     func() time.Time

	// symbols is nil unless REST validation is enabled.
	symbols snapshot.SymbolSource
	ws      *bitget.WSClient

	flushMu  sync.Mutex
	mirrored uint64 // append sequence already handed to sinks

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	loopDone  chan struct{}
}

// New builds a collector. m and sinks may be nil.
func New(cfg *config.Config, store *filestore.Store, m *metrics.Metrics, sinks []Sink, logger *zap.Logger) *Collector {
	c := &Collector{
		cfg:      cfg,
		store:    store,
		buffer:   memorystore.NewTradeBuffer(cfg.Collector.FlushEvery),
		metrics:  m,
		sinks:    sinks,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	if cfg.Bitget.REST.ValidateSymbols {
		c.symbols = bitget.NewRESTClient(cfg.Bitget.REST.BaseURL, cfg.Bitget.REST.Timeout)
	}
	return c
}

// Start loads the existing trade file, connects the feed and starts the
// flush loop. It returns once everything is running.
func (c *Collector) Start(ctx context.Context) error {
	err := errors.New("collector: already started")
	c.startOnce.Do(func() { err = c.start(ctx) })
	return err
}

func (c *Collector) start(ctx context.Context) error {
	wsCfg := c.cfg.Bitget.WS
	instType, err := bitget.ParseInstType(wsCfg.InstType)
	if err != nil {
		return err
	}

	existing, err := c.store.Load()
	if err != nil {
		// Start empty; the first flush replaces the unreadable file.
		c.logger.Error("failed to load existing trade file, starting empty",
			zap.String("path", c.store.Path()), zap.Error(err))
		existing = nil
	}
	c.buffer.Preload(existing)

	symbols := wsCfg.Symbols
	if c.symbols != nil {
		loader := &snapshot.SymbolLoader{Source: c.symbols, Timeout: c.cfg.Bitget.REST.Timeout, Logger: c.logger}
		symbols = loader.LoadSymbols(ctx, symbols)
	}

	c.logger.Info("Starting Bitget trade collector",
		zap.String("url", wsCfg.URL),
		zap.String("inst_type", string(instType)),
		zap.Strings("symbols", symbols),
		zap.String("store", c.store.Path()),
		zap.Int("loaded_records", len(existing)),
		zap.Int("max_records", c.cfg.Store.MaxRecords),
		zap.Int("flush_every", c.cfg.Collector.FlushEvery),
		zap.Duration("flush_interval", c.cfg.Collector.FlushInterval))

	c.ws = bitget.NewWSClient(wsCfg.URL, bitget.WSOptions{
		InstType:          instType,
		PingInterval:      wsCfg.PingInterval,
		PongWait:          wsCfg.PongWait,
		WriteTimeout:      wsCfg.WriteTimeout,
		HandshakeTimeout:  wsCfg.HandshakeTimeout,
		SubscribeInterval: wsCfg.SubscribeInterval,
		MaxReconnects:     wsCfg.MaxReconnects,
	}, memorystore.NewSymbolStore(symbols...), c.logger)

	c.ws.SetMessageHandler(stream.MakeMessageHandler(c.logger, c.buffer, stream.HandlerOptions{
		LargeTradeUSD: c.cfg.Collector.LargeTradeUSD,
		Observer:      c.metrics,
	}))
	c.ws.SetStateListener(c.metrics.ConnectionStateChanged)

	if err := c.ws.Start(ctx); err != nil {
		return fmt.Errorf("start websocket: %w", err)
	}

	go c.loop(ctx)
	return nil
}

// loop serializes every flush trigger onto one goroutine.
func (c *Collector) loop(ctx context.Context) {
	defer close(c.loopDone)

	ticker := time.NewTicker(c.cfg.Collector.FlushInterval)
	defer ticker.Stop()

	feedDone := c.ws.Done()
	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case <-c.buffer.FlushRequests():
			_ = c.flush(ctx, triggerThreshold)
		case <-ticker.C:
			_ = c.flush(ctx, triggerInterval)
		case <-feedDone:
			feedDone = nil
			if errors.Is(c.ws.Err(), bitget.ErrReconnectsExhausted) {
				c.logger.Error("Trade feed stopped, collector no longer ingesting",
					zap.Int("max_reconnects", c.cfg.Bitget.WS.MaxReconnects))
			}
			_ = c.flush(ctx, triggerFeedDown)
		}
	}
}

// Stop disconnects the feed, stops the flush loop and writes the buffer one
// last time. ctx bounds the final sink mirroring.
func (c *Collector) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.ws != nil {
			c.ws.Stop()
			close(c.stop)
			<-c.loopDone
		}
		err = c.flush(ctx, triggerShutdown)
		c.logger.Info("Collector stopped", zap.Int("records", c.buffer.Len()))
	})
	return err
}

// FeedDone is closed once the trade feed stopped for good.
func (c *Collector) FeedDone() <-chan struct{} {
	if c.ws == nil {
		return nil
	}
	return c.ws.Done()
}

// Flush persists the buffer immediately.
func (c *Collector) Flush(ctx context.Context) error {
	return c.flush(ctx, "manual")
}

// flush writes a snapshot of the buffer. Past MaxRecords the file is rotated
// and only the newest RetainCount records stay on disk and in memory. On any
// write failure the buffer is left untouched so the next flush retries.
func (c *Collector) flush(ctx context.Context, trigger string) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	snap, seq := c.buffer.Snapshot()
	if len(snap) == 0 {
		return nil
	}

	kept := snap
	var (
		backup string
		err    error
	)
	if len(snap) > c.cfg.Store.MaxRecords {
		kept = snap[len(snap)-c.cfg.Store.RetainCount():]
		backup, err = c.store.Rotate(kept, c.now())
	} else {
		err = c.store.Write(snap)
	}
	c.metrics.FlushDone(err, c.buffer.Len())
	if err != nil {
		c.logger.Error("Failed to save trading data",
			zap.String("trigger", trigger), zap.Int("records", len(snap)), zap.Error(err))
		return err
	}

	c.buffer.DropOldest(len(snap) - len(kept))
	if backup != "" {
		c.metrics.Rotated()
		c.logger.Info("Rotated trade file",
			zap.String("backup", backup),
			zap.Int("records_before", len(snap)),
			zap.Int("records_kept", len(kept)))
	}

	fields := []zap.Field{zap.String("trigger", trigger), zap.Int("records", len(kept))}
	if trigger == triggerInterval {
		c.logger.Info("Periodic save completed", fields...)
	} else {
		c.logger.Debug("Trading data saved", fields...)
	}

	fresh := int(seq - c.mirrored)
	if fresh > len(snap) {
		fresh = len(snap)
	}
	c.mirrored = seq
	if fresh > 0 {
		c.mirror(ctx, snap[len(snap)-fresh:])
	}
	return nil
}

// mirror fans the newly persisted records out to every sink concurrently,
// each bounded by SinkTimeout. Records are delivered at most once.
func (c *Collector) mirror(ctx context.Context, records []memorystore.TradeRecord) {
	if len(c.sinks) == 0 {
		return
	}

	timeout := c.cfg.Collector.SinkTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var g errgroup.Group
	for _, sink := range c.sinks {
		g.Go(func() error {
			sinkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if err := sink.WriteTrades(sinkCtx, records); err != nil {
				c.metrics.SinkFailed(sink.Name())
				c.logger.Warn("failed to mirror trades",
					zap.String("sink", sink.Name()), zap.Int("records", len(records)), zap.Error(err))
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}
