package bitget

import "fmt"

// InstType is the Bitget product line used in subscription arguments.
type InstType string

const (
	InstTypeSpot        InstType = "SPOT"
	InstTypeUSDTFutures InstType = "USDT-FUTURES"
	InstTypeCoinFutures InstType = "COIN-FUTURES"
	InstTypeUSDCFutures InstType = "USDC-FUTURES"
)

const (
	DefaultPublicWSURL = "wss://ws.bitget.com/v2/ws/public"
	DefaultRESTBaseURL = "https://api.bitget.com"

	ChannelTrade   = "trade"
	OpSubscribe    = "subscribe"
	EventSubscribe = "subscribe"
	EventError     = "error"

	restSuccessCode    = "00000"
	symbolStatusOnline = "online"

	// Application-level keep-alive frames; Bitget answers "ping" with "pong".
	appPing = "ping"
	appPong = "pong"
)

var validInstTypes = map[InstType]struct{}{
	InstTypeSpot:        {},
	InstTypeUSDTFutures: {},
	InstTypeCoinFutures: {},
	InstTypeUSDCFutures: {},
}

// IsValid checks if the InstType is one of the known product lines.
func (t InstType) IsValid() bool {
	_, ok := validInstTypes[t]
	return ok
}

// ParseInstType parses a string into a valid InstType.
func ParseInstType(s string) (InstType, error) {
	t := InstType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid instType: %s", s)
	}
	return t, nil
}
