package domain

import (
	"sync"

	"go.uber.org/zap"
)

type CacheLimits struct {
	Trades   int
	Orders   int
	MyTrades int
}

func DefaultCacheLimits() CacheLimits {
	return CacheLimits{Trades: 1000, Orders: 1000, MyTrades: 1000}
}

// MarketState is every store of one logical client. It is shared by all connections of that client.
type MarketState struct {
	Books    *OrderBookStorage
	Tickers  *TickerStorage
	MyTrades *KeyedCache[Trade]
	Orders   *OrderReconciler

	limits CacheLimits

	mu     sync.Mutex
	trades map[string]*ArrayCache[Trade]
}

func NewMarketState(limits CacheLimits, logger *zap.Logger, sinks ...OrderSink) *MarketState {
	return &MarketState{
		Books:    NewOrderBookStorage(),
		Tickers:  NewTickerStorage(),
		MyTrades: NewKeyedCache[Trade](limits.MyTrades),
		Orders:   NewOrderReconciler(NewKeyedCache[Order](limits.Orders), logger, sinks...),
		limits:   limits,
		trades:   make(map[string]*ArrayCache[Trade]),
	}
}

// Trades returns the public trade ring of symbol. Each symbol has its own bound.
func (s *MarketState) Trades(symbol string) *ArrayCache[Trade] {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.trades[symbol]
	if !ok {
		c = NewArrayCache[Trade](s.limits.Trades)
		s.trades[symbol] = c
	}
	return c
}
