package bitget

import (
	"time"

	"tradecollector/internal/bitget/memorystore"
)

// ToTradeRecords converts a trade batch into store records stamped with receivedAt.
// Malformed entries are kept as-is; nothing is dropped.
func ToTradeRecords(symbol string, entries []TradeEntry, receivedAt time.Time) []memorystore.TradeRecord {
	stamp := memorystore.FormatRecordedAt(receivedAt)

	out := make([]memorystore.TradeRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, memorystore.TradeRecord{
			RecordedAt: stamp,
			Symbol:     symbol,
			Data: memorystore.TradeData{
				Price:   e.Price,
				Size:    e.Size,
				Side:    e.Side,
				TradeID: e.TradeID,
				Ts:      e.Ts,
			},
		})
	}
	return out
}
