package snapshot

import (
	"context"
	"time"

	"tradecollector/pkg/bitget"

	"go.uber.org/zap"
)

// SymbolSource lists the instruments known to the exchange.
type SymbolSource interface {
	GetSpotSymbols(ctx context.Context) ([]bitget.SymbolInfo, error)
}

type SymbolLoader struct {
	Source  SymbolSource
	Timeout time.Duration
	Logger  *zap.Logger
}

// LoadSymbols narrows the configured symbols to the ones Bitget lists as
// online. On any REST failure the configured list is returned unchanged so
// that a flaky metadata endpoint never blocks ingestion.
func (l *SymbolLoader) LoadSymbols(ctx context.Context, configured []string) []string {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	listed, err := l.Source.GetSpotSymbols(ctx)
	if err != nil {
		l.Logger.Warn("failed to load spot symbols, using configured list", zap.Error(err))
		return configured
	}

	online, rejected := bitget.FilterOnline(configured, listed)
	if len(rejected) > 0 {
		l.Logger.Warn("skipping symbols not online on Bitget", zap.Strings("symbols", rejected))
	}
	if len(online) == 0 {
		l.Logger.Warn("no configured symbol is online, using configured list")
		return configured
	}
	l.Logger.Info("loaded symbols", zap.Int("count", len(online)))
	return online
}
