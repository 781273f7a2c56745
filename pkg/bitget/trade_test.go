package bitget

import (
	"encoding/json"
	"testing"
	"time"
)

// go test -v --run TestToTradeRecords
func TestToTradeRecords(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []TradeEntry{
		{Price: json.RawMessage(`"65000"`), Size: json.RawMessage(`"0.1"`), Side: json.RawMessage(`"buy"`)},
		{Price: json.RawMessage(`"abc"`), Size: nil},
	}

	records := ToTradeRecords("BTCUSDT", entries, at)
	if len(records) != 2 {
		t.Fatalf("expected malformed entries to be kept, got %d records", len(records))
	}
	if records[0].RecordedAt != "2024-03-01T12:00:00.000000Z" || records[0].Symbol != "BTCUSDT" {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if string(records[1].Data.Price) != `"abc"` {
		t.Errorf("expected raw price passthrough, got %s", records[1].Data.Price)
	}
}
