package bitget

import (
	"context"
	"fmt"
	"time"
)

// SubscribeScheduler spaces out per-symbol subscribe frames so a fresh
// connection does not trip the exchange's request rate limit.
type SubscribeScheduler struct {
	InstType InstType
	Channel  string
	Interval time.Duration
}

// Run sends one subscribe request per symbol, in order, Interval apart; the
// first goes out immediately. It returns how many were sent. Cancelling ctx
// discards the remaining sends.
func (s SubscribeScheduler) Run(ctx context.Context, symbols []string, send func(SubscribeRequest) error) (int, error) {
	channel := s.Channel
	if channel == "" {
		channel = ChannelTrade
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for i, symbol := range symbols {
		if i > 0 && s.Interval > 0 {
			if timer == nil {
				timer = time.NewTimer(s.Interval)
			} else {
				timer.Reset(s.Interval)
			}
			select {
			case <-ctx.Done():
				return i, ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return i, err
		}

		if err := send(NewSubscribeRequest(s.InstType, channel, symbol)); err != nil {
			return i, fmt.Errorf("subscribe %s: %w", symbol, err)
		}
	}
	return len(symbols), nil
}
