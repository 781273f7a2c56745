package memorystore

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the fixed-width UTC layout used for RecordedAt.
// Fixed width keeps lexicographic order equal to chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// TradeRecord represents one trade observed on the feed, stamped with the
// ingestion-side clock. This is the unit persisted to the store file.
type TradeRecord struct {
	RecordedAt string    `json:"timestamp"` // Receipt time (ISO-8601, ingestion clock)
	Symbol     string    `json:"symbol"`    // Instrument ID as delivered by the feed, e.g. "BTCUSDT"
	Data       TradeData `json:"data"`      // Raw trade payload
}

// TradeData holds the passthrough trade fields exactly as received.
// Values are kept raw so that strings stay strings and numbers stay numbers.
type TradeData struct {
	Price   json.RawMessage `json:"price"`   // Execution price, usually a decimal string
	Size    json.RawMessage `json:"size"`    // Executed quantity, usually a decimal string
	Side    json.RawMessage `json:"side"`    // "buy" or "sell"
	TradeID json.RawMessage `json:"tradeId"` // Exchange trade ID
	Ts      json.RawMessage `json:"ts"`      // Exchange timestamp (ms since epoch, as string)
}

// FormatRecordedAt renders t in TimestampLayout (UTC).
func FormatRecordedAt(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseRecordedAt parses a stored timestamp. Besides TimestampLayout it accepts
// zone-less ISO-8601 values (interpreted in local time) written by older files.
func ParseRecordedAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// TryParseNumeric interprets a raw JSON value as a decimal. Both JSON numbers
// and numeric strings are accepted; anything else (null, bool, garbage) reports false.
func TryParseNumeric(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
		s = strings.TrimSpace(s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Notional returns price × size, or false when either field is not numeric.
func (r TradeRecord) Notional() (decimal.Decimal, bool) {
	price, ok := TryParseNumeric(r.Data.Price)
	if !ok {
		return decimal.Zero, false
	}
	size, ok := TryParseNumeric(r.Data.Size)
	if !ok {
		return decimal.Zero, false
	}
	return price.Mul(size), true
}

// SideString returns the side field without JSON quoting, for log lines.
func (d TradeData) SideString() string {
	var s string
	if err := json.Unmarshal(d.Side, &s); err != nil {
		return string(d.Side)
	}
	return s
}
