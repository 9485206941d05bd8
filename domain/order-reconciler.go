package domain

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderEventKind int

const (
	// OrderEventStatus covers received, open, done and change frames.
	OrderEventStatus OrderEventKind = iota
	// OrderEventFill is a match against one of the tracked orders.
	OrderEventFill
)

func (k OrderEventKind) String() string {
	switch k {
	case OrderEventStatus:
		return "status"
	case OrderEventFill:
		return "fill"
	}
	return "unknown"
}

// OrderEvent is one lifecycle event of a venue order, already parsed.
type OrderEvent struct {
	Kind     OrderEventKind
	Symbol   string
	Sequence int64

	OrderID      string
	MakerOrderID string
	TakerOrderID string

	// View is the order as described by a status event.
	View Order
	// Trade is the execution carried by a fill event.
	Trade Trade
}

type OrderSink interface {
	OrderUpdated(order Order)
}

// OrderReconciler merges lifecycle events into one record per order.
// Events of one symbol are applied one at a time; different symbols proceed in parallel.
type OrderReconciler struct {
	orders *KeyedCache[Order]
	sinks  []OrderSink
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewOrderReconciler(orders *KeyedCache[Order], logger *zap.Logger, sinks ...OrderSink) *OrderReconciler {
	return &OrderReconciler{
		orders: orders,
		sinks:  sinks,
		logger: logger.Named("order-reconciler"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (r *OrderReconciler) Orders() *KeyedCache[Order] {
	return r.orders
}

// Restore puts previously persisted orders back, so redelivered events stay suppressed.
func (r *OrderReconciler) Restore(orders []Order) {
	for _, order := range orders {
		r.orders.Append(order)
	}
}

func (r *OrderReconciler) symbolLock(symbol string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		r.locks[symbol] = l
	}
	return l
}

func (r *OrderReconciler) find(ev OrderEvent) (Order, bool) {
	if ev.OrderID != "" {
		if order, ok := r.orders.Get(ev.Symbol, ev.OrderID); ok {
			return order, true
		}
	}
	// fills reference the resting and the incoming order, either may be ours
	for _, id := range []string{ev.MakerOrderID, ev.TakerOrderID} {
		if id == "" {
			continue
		}
		if order, ok := r.orders.Get(ev.Symbol, id); ok {
			return order, true
		}
	}
	return Order{}, false
}

// Apply merges ev into its order. It reports false when the event was a stale duplicate.
func (r *OrderReconciler) Apply(ev OrderEvent) (Order, bool, error) {
	l := r.symbolLock(ev.Symbol)
	l.Lock()
	defer l.Unlock()

	order, ok := r.find(ev)
	if !ok {
		if ev.Kind == OrderEventFill {
			return Order{}, false, fmt.Errorf("%w: %s maker=%s taker=%s", ErrOrderNotTracked, ev.Symbol, ev.MakerOrderID, ev.TakerOrderID)
		}
		order = r.create(ev)
		r.store(order)
		return order, true, nil
	}

	if order.Sequence != 0 && ev.Sequence <= order.Sequence {
		r.logger.Debug("discarding stale order event",
			zap.String("order_id", order.ID),
			zap.Stringer("kind", ev.Kind),
			zap.Int64("sequence", ev.Sequence),
			zap.Int64("last_sequence", order.Sequence),
		)
		return order, false, nil
	}

	switch ev.Kind {
	case OrderEventFill:
		applyFill(&order, ev.Trade)
	case OrderEventStatus:
		applyStatus(&order, ev.View)
	}
	order.Sequence = ev.Sequence

	r.store(order)
	return order, true, nil
}

func (r *OrderReconciler) create(ev OrderEvent) Order {
	order := ev.View.Clone()
	if order.Symbol == "" {
		order.Symbol = ev.Symbol
	}
	if order.ID == "" {
		order.ID = ev.OrderID
	}
	if order.Status == "" {
		order.Status = OrderStatusOpen
	}
	order.Sequence = ev.Sequence
	return order
}

func (r *OrderReconciler) store(order Order) {
	r.orders.Append(order)
	for _, sink := range r.sinks {
		sink.OrderUpdated(order.Clone())
	}
}

func applyFill(order *Order, trade Trade) {
	order.Trades = append(order.Trades, trade)
	order.LastTradeTimestamp = trade.Timestamp

	totalCost := decimal.Zero
	totalAmount := decimal.Zero
	for _, t := range order.Trades {
		totalCost = totalCost.Add(t.Cost)
		totalAmount = totalAmount.Add(t.Amount)
	}
	if totalAmount.IsPositive() {
		order.Average = NullDecimal(totalCost.Div(totalAmount))
	}
	order.Cost = NullDecimal(totalCost)

	if order.Filled.Valid {
		order.Filled = NullDecimal(order.Filled.Decimal.Add(trade.Amount))
	} else {
		order.Filled = NullDecimal(trade.Amount)
	}
	if order.Amount.Valid {
		order.Remaining = NullDecimal(order.Amount.Decimal.Sub(order.Filled.Decimal))
	}

	if order.Fee == nil {
		order.Fee = &Fee{
			Cost:     NullDecimal(decimal.Zero),
			Currency: trade.Fee.Currency,
		}
	}
	if order.Fee.Cost.Valid && trade.Fee.Cost.Valid {
		order.Fee.Cost = NullDecimal(order.Fee.Cost.Decimal.Add(trade.Fee.Cost.Decimal))
	}
}

func applyStatus(order *Order, view Order) {
	order.Merge(view)
	// a frame reporting only what is left still tells how much was filled
	if view.Remaining.Valid && !view.Filled.Valid && order.Amount.Valid {
		order.Filled = NullDecimal(order.Amount.Decimal.Sub(view.Remaining.Decimal))
	}
}

func (r *OrderReconciler) Get(symbol, id string) (Order, bool) {
	return r.orders.Get(symbol, id)
}
