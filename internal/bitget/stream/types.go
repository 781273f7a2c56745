package stream

import (
	"time"

	"tradecollector/internal/bitget/memorystore"
)

// Appender receives converted trade records in arrival order.
type Appender interface {
	Append(r memorystore.TradeRecord)
}

// Observer is notified once per record appended. Used for metrics.
type Observer interface {
	TradeReceived(symbol string)
}

// HandlerOptions configures MakeMessageHandler.
type HandlerOptions struct {
	LargeTradeUSD float64          // notional above which a trade is logged; 0 disables
	Now           func() time.Time // receipt clock; defaults to time.Now
	Observer      Observer         // optional
}
