package domain

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type BookChange struct {
	Side   Side
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBookStorage owns every book of the client. Writers are serialized per symbol,
// so two connections may feed different symbols concurrently.
type OrderBookStorage struct {
	mu    sync.RWMutex
	books map[string]*bookSlot
}

type bookSlot struct {
	mu   sync.Mutex
	book *OrderBook
}

func NewOrderBookStorage() *OrderBookStorage {
	return &OrderBookStorage{
		books: make(map[string]*bookSlot),
	}
}

func (o *OrderBookStorage) slot(symbol string) *bookSlot {
	o.mu.RLock()
	s, ok := o.books[symbol]
	o.mu.RUnlock()
	if ok {
		return s
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok = o.books[symbol]; !ok {
		s = &bookSlot{}
		o.books[symbol] = s
	}
	return s
}

func (o *OrderBookStorage) lookup(symbol string) (*bookSlot, error) {
	o.mu.RLock()
	s, ok := o.books[symbol]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderBookNotFound, symbol)
	}
	return s, nil
}

// LoadSnapshot replaces whatever book symbol had with a fresh one built from bids and asks.
// The timestamp is unknown at snapshot time and left at zero.
func (o *OrderBookStorage) LoadSnapshot(symbol string, bids, asks []PriceLevel, depthLimit int) OrderBookSnapshot {
	book := NewOrderBook(symbol, depthLimit)
	for _, level := range bids {
		book.Bids.Store(level.Price, level.Amount)
	}
	for _, level := range asks {
		book.Asks.Store(level.Price, level.Amount)
	}

	s := o.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book = book

	return book.TakeSnapshot(0)
}

// ApplyDelta upserts a single level. The book must have been created by LoadSnapshot.
func (o *OrderBookStorage) ApplyDelta(symbol string, side Side, price, amount decimal.Decimal) error {
	s, err := o.lookup(symbol)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return fmt.Errorf("%w: %s", ErrOrderBookNotFound, symbol)
	}

	bookSide, err := s.book.Side(side)
	if err != nil {
		return err
	}
	bookSide.Store(price, amount)
	return nil
}

// ApplyUpdateBatch applies changes in order and stamps the book with serverTimestamp.
// Sides are validated before anything is mutated.
func (o *OrderBookStorage) ApplyUpdateBatch(symbol string, changes []BookChange, serverTimestamp int64) (OrderBookSnapshot, error) {
	s, err := o.lookup(symbol)
	if err != nil {
		return OrderBookSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return OrderBookSnapshot{}, fmt.Errorf("%w: %s", ErrOrderBookNotFound, symbol)
	}

	sides := make([]*OrderBookSide, len(changes))
	for i, change := range changes {
		if sides[i], err = s.book.Side(change.Side); err != nil {
			return OrderBookSnapshot{}, err
		}
	}

	for i, change := range changes {
		sides[i].Store(change.Price, change.Amount)
	}
	s.book.Timestamp = serverTimestamp

	return s.book.TakeSnapshot(0), nil
}

// TakeSnapshot returns a copy of the book bounded to limit levels per side (configured depth when limit <= 0).
func (o *OrderBookStorage) TakeSnapshot(symbol string, limit int) (OrderBookSnapshot, error) {
	s, err := o.lookup(symbol)
	if err != nil {
		return OrderBookSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return OrderBookSnapshot{}, fmt.Errorf("%w: %s", ErrOrderBookNotFound, symbol)
	}
	return s.book.TakeSnapshot(limit), nil
}

// Drop forgets the book of symbol, so the next delta is reported as a state violation until a new snapshot arrives.
func (o *OrderBookStorage) Drop(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.books, symbol)
}

func (o *OrderBookStorage) OrderBookCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.books)
}
