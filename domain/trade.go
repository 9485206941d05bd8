package domain

import "github.com/shopspring/decimal"

type TakerOrMaker string

const (
	Taker TakerOrMaker = "taker"
	Maker TakerOrMaker = "maker"
)

type Fee struct {
	Cost     decimal.NullDecimal `json:"cost"`
	Rate     decimal.NullDecimal `json:"rate"`
	Currency string              `json:"currency"`
}

// Trade is created once from a single match frame and never mutated afterwards.
type Trade struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Order        string          `json:"order,omitempty"`
	MakerOrderID string          `json:"makerOrderId,omitempty"`
	TakerOrderID string          `json:"takerOrderId,omitempty"`
	Side         Side            `json:"side"`
	TakerOrMaker TakerOrMaker    `json:"takerOrMaker"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	Cost         decimal.Decimal `json:"cost"`
	Fee          Fee             `json:"fee"`
	Timestamp    int64           `json:"timestamp"`
}

func (t Trade) CacheSymbol() string   { return t.Symbol }
func (t Trade) CacheKey() string      { return t.ID }
func (t Trade) CacheTimestamp() int64 { return t.Timestamp }
func (t Trade) Clone() Trade          { return t }
