package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one mirrored trade. Price and size are NULL when the feed
// delivered a non-numeric value.
type TradeRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol     string    `gorm:"type:text;not null;index:idx_trade_symbol;index:idx_symbol_trade_recorded,unique"`
	TradeID    string    `gorm:"type:text;not null;index:idx_symbol_trade_recorded,unique"`
	RecordedAt time.Time `gorm:"not null;index:idx_symbol_trade_recorded,unique;index:idx_trade_recorded_at"`

	Price decimal.NullDecimal `gorm:"type:numeric"`
	Size  decimal.NullDecimal `gorm:"type:numeric"`
	Side  string              `gorm:"type:varchar(8)"`

	ExchangeTime *time.Time

	InsertedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (TradeRecord) TableName() string {
	return "trade_record"
}
