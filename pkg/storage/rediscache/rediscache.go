package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tradecollector/internal/bitget/memorystore"

	"github.com/redis/go-redis/v9"
)

const exchange = "bitget"

// TradeCache keeps the most recent trades per symbol in Redis:
// last:<exchange>:<symbol> holds the latest trade and trades:<exchange>:<symbol>
// a newest-first list capped at recentLimit entries.
type TradeCache struct {
	rdb         *redis.Client
	ttl         time.Duration
	recentLimit int64
}

// New creates a TradeCache and pings the Redis server.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration, recentLimit int) (*TradeCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if recentLimit <= 0 {
		recentLimit = 100
	}
	return &TradeCache{rdb: rdb, ttl: ttl, recentLimit: int64(recentLimit)}, nil
}

func (c *TradeCache) Close() error {
	return c.rdb.Close()
}

func lastKey(symbol string) string   { return fmt.Sprintf("last:%s:%s", exchange, symbol) }
func recentKey(symbol string) string { return fmt.Sprintf("trades:%s:%s", exchange, symbol) }

func (c *TradeCache) Name() string { return "redis" }

// WriteTrades pushes a flushed batch in one pipeline round trip.
func (c *TradeCache) WriteTrades(ctx context.Context, records []memorystore.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	latest := make(map[string][]byte)
	touched := make(map[string]struct{})
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			b, err := json.Marshal(r)
			if err != nil {
				return err
			}
			pipe.LPush(ctx, recentKey(r.Symbol), b)
			latest[r.Symbol] = b
			touched[r.Symbol] = struct{}{}
		}
		for symbol := range touched {
			pipe.LTrim(ctx, recentKey(symbol), 0, c.recentLimit-1)
			pipe.Expire(ctx, recentKey(symbol), c.ttl)
			pipe.Set(ctx, lastKey(symbol), latest[symbol], c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Latest returns the most recent trade cached for symbol, or false when none is cached.
func (c *TradeCache) Latest(ctx context.Context, symbol string) (memorystore.TradeRecord, bool, error) {
	var r memorystore.TradeRecord
	b, err := c.rdb.Get(ctx, lastKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, false, fmt.Errorf("decode cached trade: %w", err)
	}
	return r, true, nil
}

// Recent returns up to n cached trades for symbol, newest first.
func (c *TradeCache) Recent(ctx context.Context, symbol string, n int) ([]memorystore.TradeRecord, error) {
	vals, err := c.rdb.LRange(ctx, recentKey(symbol), 0, int64(n)-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]memorystore.TradeRecord, 0, len(vals))
	for _, v := range vals {
		var r memorystore.TradeRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("decode cached trade: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
