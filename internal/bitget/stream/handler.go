package stream

import (
	"encoding/json"
	"time"

	"tradecollector/pkg/bitget"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MakeMessageHandler returns a function that handles trade frames from the
// WebSocket client by converting each entry into a TradeRecord and appending
// it to the buffer. Frames without trade data are ignored.
func MakeMessageHandler(logger *zap.Logger, buffer Appender, opts HandlerOptions) func(msg []byte) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	largeTrade := decimal.NewFromFloat(opts.LargeTradeUSD)

	return func(msg []byte) {
		var parsed bitget.TradeMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Warn("failed to parse trade payload", zap.Error(err))
			return
		}
		if parsed.Arg.InstID == "" || len(parsed.Data) == 0 {
			return // not a trade batch
		}
		symbol := parsed.Arg.InstID

		for _, record := range bitget.ToTradeRecords(symbol, parsed.Data, now()) {
			buffer.Append(record)
			if opts.Observer != nil {
				opts.Observer.TradeReceived(symbol)
			}

			if opts.LargeTradeUSD <= 0 {
				continue
			}
			// Malformed price/size simply has no notional.
			if value, ok := record.Notional(); ok && value.GreaterThan(largeTrade) {
				logger.Info("Large trade",
					zap.String("symbol", symbol),
					zap.String("value_usd", value.StringFixed(2)),
					zap.String("side", record.Data.SideString()))
			}
		}
	}
}
