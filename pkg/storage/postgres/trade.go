package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"tradecollector/internal/bitget/memorystore"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// InsertTrades writes records, skipping any already stored. It returns the
// number of rows actually inserted.
func (p *PostgresClient) InsertTrades(ctx context.Context, records []*TradeRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "trade_id"},
			{Name: "recorded_at"},
		},
		DoNothing: true,
	}).CreateInBatches(records, insertBatchSize)

	return tx.RowsAffected, tx.Error
}

func (p *PostgresClient) LatestTrades(ctx context.Context, symbol string, limit int) ([]TradeRecord, error) {
	var trades []TradeRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

func (p *PostgresClient) DeleteTradesBefore(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("recorded_at < ?", before).
		Delete(&TradeRecord{})
	return tx.RowsAffected, tx.Error
}

// ToTradeRecord converts a buffered trade into a row. Malformed numeric
// fields become NULL instead of failing the whole batch.
func ToTradeRecord(r memorystore.TradeRecord) *TradeRecord {
	row := &TradeRecord{
		Symbol:  r.Symbol,
		TradeID: rawString(r.Data.TradeID),
		Side:    r.Data.SideString(),
	}
	if t, err := memorystore.ParseRecordedAt(r.RecordedAt); err == nil {
		row.RecordedAt = t.UTC()
	}
	if d, ok := memorystore.TryParseNumeric(r.Data.Price); ok {
		row.Price = decimal.NewNullDecimal(d)
	}
	if d, ok := memorystore.TryParseNumeric(r.Data.Size); ok {
		row.Size = decimal.NewNullDecimal(d)
	}
	if ms, err := strconv.ParseInt(rawString(r.Data.Ts), 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		row.ExchangeTime = &t
	}
	return row
}

// rawString unquotes a JSON string, or returns the raw text of any other value.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// TradeSink mirrors flushed trades into Postgres.
type TradeSink struct {
	Client *PostgresClient
}

func (s *TradeSink) Name() string { return "postgres" }

func (s *TradeSink) WriteTrades(ctx context.Context, records []memorystore.TradeRecord) error {
	rows := make([]*TradeRecord, len(records))
	for i, r := range records {
		rows[i] = ToTradeRecord(r)
	}
	_, err := s.Client.InsertTrades(ctx, rows)
	return err
}
