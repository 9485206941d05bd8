package domain

import (
	"sync"

	"github.com/shopspring/decimal"
)

type Ticker struct {
	Symbol     string              `json:"symbol"`
	Timestamp  int64               `json:"timestamp"`
	High       decimal.NullDecimal `json:"high"`
	Low        decimal.NullDecimal `json:"low"`
	Bid        decimal.NullDecimal `json:"bid"`
	BidVolume  decimal.NullDecimal `json:"bidVolume"`
	Ask        decimal.NullDecimal `json:"ask"`
	AskVolume  decimal.NullDecimal `json:"askVolume"`
	Open       decimal.NullDecimal `json:"open"`
	Close      decimal.NullDecimal `json:"close"`
	Last       decimal.NullDecimal `json:"last"`
	BaseVolume decimal.NullDecimal `json:"baseVolume"`
}

// TickerStorage keeps the latest ticker per symbol.
type TickerStorage struct {
	mu      sync.RWMutex
	tickers map[string]Ticker
}

func NewTickerStorage() *TickerStorage {
	return &TickerStorage{tickers: make(map[string]Ticker)}
}

func (s *TickerStorage) Set(ticker Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[ticker.Symbol] = ticker
}

func (s *TickerStorage) Get(symbol string) (Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticker, ok := s.tickers[symbol]
	return ticker, ok
}
