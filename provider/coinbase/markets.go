package coinbase

import (
	"fmt"
	"sync"

	"github.com/spooky-finn/marketsync/domain"
)

// MarketRegistry resolves unified symbols and venue market ids from a fixed market list.
type MarketRegistry struct {
	mu       sync.RWMutex
	byID     map[string]domain.Market
	bySymbol map[string]domain.Market
}

func NewMarketRegistry(markets []domain.Market) *MarketRegistry {
	r := &MarketRegistry{
		byID:     make(map[string]domain.Market),
		bySymbol: make(map[string]domain.Market),
	}
	for _, m := range markets {
		r.Add(m)
	}
	return r
}

// DefaultMarkets is used when no markets file is configured.
func DefaultMarkets() []domain.Market {
	pairs := [][2]string{
		{"BTC", "USD"}, {"ETH", "USD"}, {"ETH", "BTC"}, {"LTC", "USD"}, {"BTC", "USDC"}, {"SOL", "USD"},
	}
	markets := make([]domain.Market, 0, len(pairs))
	for _, p := range pairs {
		symbol, _ := domain.NewMarketSymbol(p[0], p[1])
		markets = append(markets, *domain.NewMarket(symbol))
	}
	return markets
}

func (r *MarketRegistry) Add(m domain.Market) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID] = m
	r.bySymbol[m.Symbol] = m
}

func (r *MarketRegistry) ResolveMarket(symbolOrID string) (*domain.Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.byID[symbolOrID]; ok {
		return &m, nil
	}
	if m, ok := r.bySymbol[symbolOrID]; ok {
		return &m, nil
	}

	// lower case or other separators
	if symbol, err := domain.NewMarketSymbolFromString(symbolOrID); err == nil {
		if m, ok := r.bySymbol[symbol.String()]; ok {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownMarket, symbolOrID)
}

func (r *MarketRegistry) Markets() []domain.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	markets := make([]domain.Market, 0, len(r.byID))
	for _, m := range r.byID {
		markets = append(markets, m)
	}
	return markets
}
