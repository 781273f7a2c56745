package bitget

import "encoding/json"

// RESTResponse is the standard envelope of Bitget's V2 REST API.
type RESTResponse struct {
	Code        string          `json:"code"`        // "00000" means success
	Msg         string          `json:"msg"`         // Human-readable result message
	RequestTime int64           `json:"requestTime"` // Server timestamp (ms)
	Data        json.RawMessage `json:"data"`        // Endpoint-specific payload, decoded later
}

// SymbolInfo is one entry of /api/v2/spot/public/symbols.
type SymbolInfo struct {
	Symbol    string `json:"symbol"`    // e.g., "BTCUSDT"
	BaseCoin  string `json:"baseCoin"`  // e.g., "BTC"
	QuoteCoin string `json:"quoteCoin"` // e.g., "USDT"
	Status    string `json:"status"`    // "online", "offline", "gray", "halt"
}

// SubscribeArg identifies one channel subscription.
type SubscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

// SubscribeRequest is the outbound {op:"subscribe"} frame.
type SubscribeRequest struct {
	Op   string         `json:"op"`
	Args []SubscribeArg `json:"args"`
}

// NewSubscribeRequest builds a single-symbol subscribe frame.
func NewSubscribeRequest(instType InstType, channel, symbol string) SubscribeRequest {
	return SubscribeRequest{
		Op: OpSubscribe,
		Args: []SubscribeArg{{
			InstType: string(instType),
			Channel:  channel,
			InstID:   symbol,
		}},
	}
}

// ControlMessage is an event frame, e.g. a subscription ack or an error.
type ControlMessage struct {
	Event string          `json:"event"` // "subscribe", "error", ...
	Arg   SubscribeArg    `json:"arg"`   // Subscription the event refers to (may be empty)
	Code  json.RawMessage `json:"code"`  // Error code; number or string depending on the endpoint
	Msg   string          `json:"msg"`   // Error description
}

// TradeMessage is a push frame on the trade channel.
type TradeMessage struct {
	Action string       `json:"action"` // "snapshot" or "update"
	Arg    SubscribeArg `json:"arg"`
	Data   []TradeEntry `json:"data"`
	Ts     int64        `json:"ts"`
}

// TradeEntry is one trade inside a TradeMessage. Fields stay raw: the feed
// sends decimal strings, but nothing here validates them.
type TradeEntry struct {
	Ts      json.RawMessage `json:"ts"`      // Exchange fill time (ms)
	Price   json.RawMessage `json:"price"`   // Fill price
	Size    json.RawMessage `json:"size"`    // Fill quantity
	Side    json.RawMessage `json:"side"`    // "buy" / "sell"
	TradeID json.RawMessage `json:"tradeId"` // Exchange trade ID
}
