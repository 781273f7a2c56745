package cache

import (
	"encoding/json"

	"tradecollector/internal/bitget/memorystore"

	"github.com/shopspring/decimal"
)

// SymbolStats is the per-symbol entry of Stats.SymbolsBreakdown.
type SymbolStats struct {
	Count  int             `json:"count"`
	Volume decimal.Decimal `json:"volume"`
}

// Stats aggregates a full snapshot of the trade file.
type Stats struct {
	TotalTrades      int                     `json:"total_trades"`
	SymbolsCount     int                     `json:"symbols_count"`
	SymbolsBreakdown map[string]*SymbolStats `json:"symbols_breakdown"`
	LatestTradeTime  *string                 `json:"latest_trade_time"` // null for an empty store
	TotalVolumeUSD   decimal.Decimal         `json:"total_volume_usd"`
	DataFileSize     int64                   `json:"data_file_size"`
}

// ComputeStats groups records by symbol. Records whose price or size is not
// numeric are counted but add nothing to the volume sums.
func ComputeStats(records []memorystore.TradeRecord, fileSize int64) Stats {
	stats := Stats{
		TotalTrades:      len(records),
		SymbolsBreakdown: make(map[string]*SymbolStats),
		TotalVolumeUSD:   decimal.Zero,
		DataFileSize:     fileSize,
	}

	var latest string
	for _, r := range records {
		s, ok := stats.SymbolsBreakdown[r.Symbol]
		if !ok {
			s = &SymbolStats{Volume: decimal.Zero}
			stats.SymbolsBreakdown[r.Symbol] = s
		}
		s.Count++

		if v, ok := r.Notional(); ok {
			s.Volume = s.Volume.Add(v)
			stats.TotalVolumeUSD = stats.TotalVolumeUSD.Add(v)
		}

		// RecordedAt is zero-padded ISO-8601, so string order is time order.
		if r.RecordedAt > latest {
			latest = r.RecordedAt
		}
	}

	stats.SymbolsCount = len(stats.SymbolsBreakdown)
	if latest != "" {
		stats.LatestTradeTime = &latest
	}
	return stats
}

// MarshalJSON renders Volume as a JSON number with full decimal precision.
func (s SymbolStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count  int         `json:"count"`
		Volume json.Number `json:"volume"`
	}{s.Count, json.Number(s.Volume.String())})
}

// MarshalJSON renders TotalVolumeUSD as a JSON number.
func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	return json.Marshal(struct {
		plain
		TotalVolumeUSD json.Number `json:"total_volume_usd"`
	}{plain(s), json.Number(s.TotalVolumeUSD.String())})
}
