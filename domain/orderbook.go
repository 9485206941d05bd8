package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy, SideSell:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderBookSide keeps one side of the book keyed by price. Ordering is recomputed lazily on read.
type OrderBookSide struct {
	descending bool
	levels     map[string]PriceLevel
	sorted     []PriceLevel
	dirty      bool
}

func newOrderBookSide(descending bool) *OrderBookSide {
	return &OrderBookSide{
		descending: descending,
		levels:     make(map[string]PriceLevel),
	}
}

// Store upserts the level at price. A zero amount removes it.
func (s *OrderBookSide) Store(price, amount decimal.Decimal) {
	key := price.String()

	if amount.IsZero() {
		if _, ok := s.levels[key]; ok {
			delete(s.levels, key)
			s.dirty = true
		}
		return
	}

	s.levels[key] = PriceLevel{Price: price, Amount: amount}
	s.dirty = true
}

func (s *OrderBookSide) Len() int {
	return len(s.levels)
}

// Levels returns a copy of the best limit levels; limit <= 0 means all of them.
func (s *OrderBookSide) Levels(limit int) []PriceLevel {
	if s.dirty || s.sorted == nil {
		s.sorted = s.sorted[:0]
		for _, level := range s.levels {
			s.sorted = append(s.sorted, level)
		}

		if s.descending {
			sort.Slice(s.sorted, func(i, j int) bool {
				return s.sorted[i].Price.GreaterThan(s.sorted[j].Price)
			})
		} else {
			sort.Slice(s.sorted, func(i, j int) bool {
				return s.sorted[i].Price.LessThan(s.sorted[j].Price)
			})
		}
		s.dirty = false
	}

	depth := limitDepth(s.sorted, limit)
	result := make([]PriceLevel, len(depth))
	copy(result, depth)
	return result
}

type OrderBook struct {
	Symbol string
	Bids   *OrderBookSide
	Asks   *OrderBookSide
	// Timestamp of the last applied update in ms, 0 when unknown.
	Timestamp int64
	// Limit is the configured depth of the views handed out, 0 when unbounded.
	Limit int
}

func NewOrderBook(symbol string, limit int) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		Bids:   newOrderBookSide(true),
		Asks:   newOrderBookSide(false),
		Limit:  limit,
	}
}

func (ob *OrderBook) Side(side Side) (*OrderBookSide, error) {
	switch side {
	case SideBuy:
		return ob.Bids, nil
	case SideSell:
		return ob.Asks, nil
	}
	return nil, fmt.Errorf("unknown side %q", side)
}

// OrderBookSnapshot is an immutable view of a book handed out to callers.
type OrderBookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

// TakeSnapshot copies the book. A positive limit overrides the configured depth.
func (ob *OrderBook) TakeSnapshot(limit int) OrderBookSnapshot {
	if limit <= 0 {
		limit = ob.Limit
	}

	return OrderBookSnapshot{
		Symbol:    ob.Symbol,
		Bids:      ob.Bids.Levels(limit),
		Asks:      ob.Asks.Levels(limit),
		Timestamp: ob.Timestamp,
	}
}

func limitDepth(depth []PriceLevel, limit int) []PriceLevel {
	if limit > 0 && len(depth) > limit {
		return depth[:limit]
	}

	return depth
}

// Limit truncates both sides to n levels. n <= 0 returns s unchanged.
func (s OrderBookSnapshot) Limit(n int) OrderBookSnapshot {
	s.Bids = limitDepth(s.Bids, n)
	s.Asks = limitDepth(s.Asks, n)
	return s
}
