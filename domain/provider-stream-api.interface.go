package domain

import "context"

// ProviderStreamAPI exposes the watch calls of one venue. Each call suspends until the next
// update of its channel and returns the latest aggregate.
type ProviderStreamAPI interface {
	WatchTicker(ctx context.Context, symbol string) (Ticker, error)
	WatchTrades(ctx context.Context, symbol string, since int64, limit int) ([]Trade, error)
	WatchOrderBook(ctx context.Context, symbol string, limit int) (OrderBookSnapshot, error)
	WatchOrders(ctx context.Context, symbol string, since int64, limit int) ([]Order, error)
	WatchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]Trade, error)

	// State is the store the venue's connections write into.
	State() *MarketState
	Close() error
}
