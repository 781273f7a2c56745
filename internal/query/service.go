package query

import (
	"math"
	"strings"
	"time"

	"tradecollector/internal/bitget/memorystore"
	"tradecollector/internal/cache"
)

// Freshness classes reported by Health.
const (
	FreshnessFresh     = "fresh"
	FreshnessStale     = "stale"
	FreshnessVeryStale = "very_stale"
	FreshnessUnknown   = "unknown"

	StatusHealthy = "healthy"
	StatusWarning = "warning"
)

// Reader is the read side of the trade file.
type Reader interface {
	Data() (*cache.Snapshot, error)
	Stats() (cache.Stats, time.Time, error)
	LastRefresh() (time.Time, bool)
}

// Limits bound what a single query may return.
type Limits struct {
	MaxRecordsPerRequest int           // cap for List and BySymbol
	LatestMaxLimit       int           // cap for Latest
	FreshWithin          time.Duration // latest trade younger than this is fresh
	StaleWithin          time.Duration // younger than this is stale, older is very_stale
}

// Service answers trade queries from the read cache. It never touches the
// trade file or the ingestion buffer directly.
type Service struct {
	reader Reader
	limits Limits
	now    func() time.Time
}

func NewService(reader Reader, limits Limits) *Service {
	return &Service{reader: reader, limits: limits, now: time.Now}
}

// Limits returns the configured query bounds.
func (s *Service) Limits() Limits {
	return s.limits
}

type Page struct {
	Records      []memorystore.TradeRecord
	TotalRecords int // records matching the filter
	Offset       int
	Limit        int
	HasMore      bool
}

type StatsResult struct {
	Stats    cache.Stats
	CacheAge time.Duration
}

type Health struct {
	Status       string
	Freshness    string
	TotalRecords int
	LastTrade    *string
	LastRefresh  *time.Time
	FileExists   bool
	FileSizeMB   float64
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func filterSymbol(records []memorystore.TradeRecord, symbol string) []memorystore.TradeRecord {
	out := make([]memorystore.TradeRecord, 0)
	for _, r := range records {
		if strings.EqualFold(r.Symbol, symbol) {
			out = append(out, r)
		}
	}
	return out
}

// tail returns the last n records as a new slice.
func tail(records []memorystore.TradeRecord, n int) []memorystore.TradeRecord {
	n = min(n, len(records))
	out := make([]memorystore.TradeRecord, n)
	copy(out, records[len(records)-n:])
	return out
}

// List pages through the records in stored order, optionally filtered by a
// case-insensitive symbol match. limit is clamped to [0, MaxRecordsPerRequest].
func (s *Service) List(limit, offset int, symbol string) (Page, error) {
	snap, err := s.reader.Data()
	if err != nil {
		return Page{}, err
	}

	limit = clamp(limit, 0, s.limits.MaxRecordsPerRequest)
	offset = max(offset, 0)

	records := snap.Records
	if symbol != "" {
		records = filterSymbol(records, symbol)
	}

	total := len(records)
	start := min(offset, total)
	end := min(start+limit, total)
	page := make([]memorystore.TradeRecord, end-start)
	copy(page, records[start:end])

	return Page{
		Records:      page,
		TotalRecords: total,
		Offset:       offset,
		Limit:        limit,
		HasMore:      end < total,
	}, nil
}

// Latest returns the most recent limit records in stored order.
func (s *Service) Latest(limit int) ([]memorystore.TradeRecord, error) {
	snap, err := s.reader.Data()
	if err != nil {
		return nil, err
	}
	return tail(snap.Records, clamp(limit, 0, s.limits.LatestMaxLimit)), nil
}

// BySymbol returns the most recent limit records of one symbol. limit is
// capped at MaxRecordsPerRequest; limit <= 0 returns every match.
func (s *Service) BySymbol(symbol string, limit int) ([]memorystore.TradeRecord, error) {
	snap, err := s.reader.Data()
	if err != nil {
		return nil, err
	}
	matched := filterSymbol(snap.Records, symbol)
	if limit <= 0 {
		return matched, nil
	}
	return tail(matched, min(limit, s.limits.MaxRecordsPerRequest)), nil
}

func (s *Service) Stats() (StatsResult, error) {
	stats, computedAt, err := s.reader.Stats()
	if err != nil {
		return StatsResult{}, err
	}
	return StatsResult{Stats: stats, CacheAge: max(s.now().Sub(computedAt), 0)}, nil
}

// Health classifies how recent the latest recorded trade is.
func (s *Service) Health() (Health, error) {
	snap, err := s.reader.Data()
	if err != nil {
		return Health{}, err
	}
	stats, _, err := s.reader.Stats()
	if err != nil {
		return Health{}, err
	}

	h := Health{
		Freshness:    s.freshness(stats.LatestTradeTime),
		TotalRecords: len(snap.Records),
		LastTrade:    stats.LatestTradeTime,
		FileExists:   snap.FileExists,
		FileSizeMB:   math.Round(float64(snap.FileSize)/(1024*1024)*100) / 100,
	}
	if at, ok := s.reader.LastRefresh(); ok {
		h.LastRefresh = &at
	}

	h.Status = StatusWarning
	if h.Freshness == FreshnessFresh || h.Freshness == FreshnessStale {
		h.Status = StatusHealthy
	}
	return h, nil
}

func (s *Service) freshness(latest *string) string {
	if latest == nil {
		return FreshnessUnknown
	}
	t, err := memorystore.ParseRecordedAt(*latest)
	if err != nil {
		return FreshnessUnknown
	}

	age := s.now().Sub(t)
	switch {
	case age < s.limits.FreshWithin:
		return FreshnessFresh
	case age < s.limits.StaleWithin:
		return FreshnessStale
	default:
		return FreshnessVeryStale
	}
}
