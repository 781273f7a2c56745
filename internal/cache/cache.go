package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tradecollector/internal/bitget/memorystore"
	"tradecollector/internal/metrics"

	"go.uber.org/zap"
)

// ErrNoSnapshot is returned when the trade file cannot be read and no
// earlier snapshot exists to fall back on.
var ErrNoSnapshot = errors.New("cache: no snapshot available")

// Source is the durable trade file as seen by the read side.
type Source interface {
	Load() ([]memorystore.TradeRecord, error)
	Stat() (exists bool, size int64)
}

// Snapshot is an immutable point-in-time copy of the trade file.
// Callers must not modify Records.
type Snapshot struct {
	Records    []memorystore.TradeRecord
	LoadedAt   time.Time
	FileExists bool
	FileSize   int64
}

type statsEntry struct {
	stats      Stats
	computedAt time.Time
	from       *Snapshot
}

// ReadCache serves the trade file from memory, re-reading it at most once
// per TTL. Published snapshots are swapped atomically and never mutated, so
// readers need no lock.
type ReadCache struct {
	source  Source
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger

	refreshMu sync.Mutex
	snap      atomic.Pointer[Snapshot]
	stats     atomic.Pointer[statsEntry]
}

func New(source Source, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *ReadCache {
	return &ReadCache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// An empty snapshot is always re-read so a freshly started collector shows
// up without waiting out the TTL.
func (c *ReadCache) fresh(s *Snapshot, now time.Time) bool {
	return s != nil && len(s.Records) > 0 && now.Sub(s.LoadedAt) <= c.ttl
}

// Data returns the current snapshot, refreshing it from disk when expired.
// A failed refresh keeps serving the previous snapshot.
func (c *ReadCache) Data() (*Snapshot, error) {
	if s := c.snap.Load(); c.fresh(s, c.now()) {
		return s, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	now := c.now()
	if s := c.snap.Load(); c.fresh(s, now) {
		return s, nil
	}

	records, err := c.source.Load()
	c.metrics.CacheRefreshed(err)
	if err != nil {
		c.logger.Error("Error loading data", zap.Error(err))
		if prev := c.snap.Load(); prev != nil {
			return prev, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	exists, size := c.source.Stat()

	s := &Snapshot{Records: records, LoadedAt: now, FileExists: exists, FileSize: size}
	c.snap.Store(s)
	c.logger.Info("Refreshed cache", zap.Int("records", len(records)))
	return s, nil
}

// Stats returns the aggregate over the current snapshot and the time it was
// computed. It is recomputed once older than the TTL or when the snapshot
// it was built from has been replaced. The returned map is shared.
func (c *ReadCache) Stats() (Stats, time.Time, error) {
	snap, err := c.Data()
	if err != nil {
		return Stats{}, time.Time{}, err
	}

	now := c.now()
	if e := c.stats.Load(); e != nil && e.from == snap && now.Sub(e.computedAt) <= c.ttl {
		return e.stats, e.computedAt, nil
	}

	e := &statsEntry{
		stats:      ComputeStats(snap.Records, snap.FileSize),
		computedAt: now,
		from:       snap,
	}
	c.stats.Store(e)
	return e.stats, e.computedAt, nil
}

// LastRefresh reports when the current snapshot was read from disk.
func (c *ReadCache) LastRefresh() (time.Time, bool) {
	s := c.snap.Load()
	if s == nil {
		return time.Time{}, false
	}
	return s.LoadedAt, true
}
