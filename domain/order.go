package domain

import "github.com/shopspring/decimal"

type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
)

// OrderStatusFromReason maps the terminal reason of a done frame.
func OrderStatusFromReason(reason string) OrderStatus {
	switch reason {
	case "filled":
		return OrderStatusClosed
	case "canceled":
		return OrderStatusCanceled
	default:
		return OrderStatusOpen
	}
}

// Order is the reconciled record of one venue order. Null decimals are fields the venue has not reported yet.
type Order struct {
	ID                 string              `json:"id"`
	ClientOrderID      string              `json:"clientOrderId,omitempty"`
	Symbol             string              `json:"symbol"`
	Side               Side                `json:"side,omitempty"`
	Type               string              `json:"type,omitempty"`
	Price              decimal.NullDecimal `json:"price"`
	Amount             decimal.NullDecimal `json:"amount"`
	Filled             decimal.NullDecimal `json:"filled"`
	Remaining          decimal.NullDecimal `json:"remaining"`
	Average            decimal.NullDecimal `json:"average"`
	Cost               decimal.NullDecimal `json:"cost"`
	Status             OrderStatus         `json:"status"`
	Fee                *Fee                `json:"fee,omitempty"`
	Trades             []Trade             `json:"trades,omitempty"`
	Timestamp          int64               `json:"timestamp"`
	LastTradeTimestamp int64               `json:"lastTradeTimestamp,omitempty"`
	// Sequence is the venue sequence number of the last applied event.
	Sequence int64 `json:"sequence"`
}

func (o Order) CacheSymbol() string   { return o.Symbol }
func (o Order) CacheKey() string      { return o.ID }
func (o Order) CacheTimestamp() int64 { return o.Timestamp }

func (o Order) Clone() Order {
	if o.Trades != nil {
		trades := make([]Trade, len(o.Trades))
		copy(trades, o.Trades)
		o.Trades = trades
	}
	if o.Fee != nil {
		fee := *o.Fee
		o.Fee = &fee
	}
	return o
}

// Merge overwrites the fields view reports. A field view is silent on is never reset.
func (o *Order) Merge(view Order) {
	mergeString(&o.ID, view.ID)
	mergeString(&o.ClientOrderID, view.ClientOrderID)
	mergeString(&o.Symbol, view.Symbol)
	mergeString(&o.Type, view.Type)
	if view.Side != "" {
		o.Side = view.Side
	}
	if view.Status != "" {
		o.Status = view.Status
	}
	mergeDecimal(&o.Price, view.Price)
	mergeDecimal(&o.Amount, view.Amount)
	mergeDecimal(&o.Filled, view.Filled)
	mergeDecimal(&o.Remaining, view.Remaining)
	mergeDecimal(&o.Average, view.Average)
	mergeDecimal(&o.Cost, view.Cost)
	if view.Fee != nil {
		fee := *view.Fee
		o.Fee = &fee
	}
	if view.Timestamp != 0 {
		o.Timestamp = view.Timestamp
	}
	if view.LastTradeTimestamp != 0 {
		o.LastTradeTimestamp = view.LastTradeTimestamp
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func mergeDecimal(dst *decimal.NullDecimal, src decimal.NullDecimal) {
	if src.Valid {
		*dst = src
	}
}

func NullDecimal(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: v, Valid: true}
}
