package coinbase

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/marketsync/domain"
)

type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameSnapshot
	FrameL2Update
	FrameTicker
	FrameReceived
	FrameOpen
	FrameMatch
	FrameDone
	FrameChange
	FrameSubscriptions
	FrameError
)

var frameKinds = map[string]FrameKind{
	"snapshot":      FrameSnapshot,
	"l2update":      FrameL2Update,
	"ticker":        FrameTicker,
	"received":      FrameReceived,
	"open":          FrameOpen,
	"match":         FrameMatch,
	"done":          FrameDone,
	"change":        FrameChange,
	"subscriptions": FrameSubscriptions,
	"error":         FrameError,
}

func (k FrameKind) String() string {
	for name, kind := range frameKinds {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Frame is one inbound message. The concrete type is decided by the type field.
type Frame interface {
	Kind() FrameKind
}

type SnapshotFrame struct {
	ProductID string     `json:"product_id"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
}

type L2UpdateFrame struct {
	ProductID string `json:"product_id"`
	Time      string `json:"time"`
	// Changes rows are [side, price, size].
	Changes [][]string `json:"changes"`
}

type TickerFrame struct {
	ProductID   string              `json:"product_id"`
	Time        string              `json:"time"`
	Sequence    int64               `json:"sequence"`
	Price       decimal.NullDecimal `json:"price"`
	Open24h     decimal.NullDecimal `json:"open_24h"`
	Volume24h   decimal.NullDecimal `json:"volume_24h"`
	Low24h      decimal.NullDecimal `json:"low_24h"`
	High24h     decimal.NullDecimal `json:"high_24h"`
	BestBid     decimal.NullDecimal `json:"best_bid"`
	BestBidSize decimal.NullDecimal `json:"best_bid_size"`
	BestAsk     decimal.NullDecimal `json:"best_ask"`
	BestAskSize decimal.NullDecimal `json:"best_ask_size"`
}

// OrderFrame is a received, open, done or change frame of the user channel.
type OrderFrame struct {
	kind FrameKind

	ProductID     string              `json:"product_id"`
	Time          string              `json:"time"`
	Sequence      int64               `json:"sequence"`
	OrderID       string              `json:"order_id"`
	ClientOID     string              `json:"client_oid"`
	OrderType     string              `json:"order_type"`
	Side          string              `json:"side"`
	Price         decimal.NullDecimal `json:"price"`
	Size          decimal.NullDecimal `json:"size"`
	Funds         decimal.NullDecimal `json:"funds"`
	RemainingSize decimal.NullDecimal `json:"remaining_size"`
	NewSize       decimal.NullDecimal `json:"new_size"`
	Reason        string              `json:"reason"`
}

type MatchFrame struct {
	ProductID    string              `json:"product_id"`
	Time         string              `json:"time"`
	Sequence     int64               `json:"sequence"`
	TradeID      int64               `json:"trade_id"`
	MakerOrderID string              `json:"maker_order_id"`
	TakerOrderID string              `json:"taker_order_id"`
	Side         string              `json:"side"`
	Size         decimal.NullDecimal `json:"size"`
	Price        decimal.NullDecimal `json:"price"`
	// Present only on the user channel, one of the two depending on our liquidity role.
	MakerFeeRate decimal.NullDecimal `json:"maker_fee_rate"`
	TakerFeeRate decimal.NullDecimal `json:"taker_fee_rate"`
}

type SubscriptionsFrame struct {
	Channels []struct {
		Name       string   `json:"name"`
		ProductIDs []string `json:"product_ids"`
	} `json:"channels"`
}

type ErrorFrame struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func (*SnapshotFrame) Kind() FrameKind      { return FrameSnapshot }
func (*L2UpdateFrame) Kind() FrameKind      { return FrameL2Update }
func (*TickerFrame) Kind() FrameKind        { return FrameTicker }
func (f *OrderFrame) Kind() FrameKind       { return f.kind }
func (*MatchFrame) Kind() FrameKind         { return FrameMatch }
func (*SubscriptionsFrame) Kind() FrameKind { return FrameSubscriptions }
func (*ErrorFrame) Kind() FrameKind         { return FrameError }

type envelope struct {
	Type string `json:"type"`
}

// ParseFrame decodes raw into its variant. Frames missing a field their variant guarantees are protocol errors.
func ParseFrame(raw []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.NewProtocolError("malformed frame: %v", err)
	}

	kind, ok := frameKinds[env.Type]
	if !ok {
		return nil, domain.NewProtocolError("unexpected frame type %q", env.Type)
	}

	var frame Frame
	switch kind {
	case FrameSnapshot:
		frame = &SnapshotFrame{}
	case FrameL2Update:
		frame = &L2UpdateFrame{}
	case FrameTicker:
		frame = &TickerFrame{}
	case FrameReceived, FrameOpen, FrameDone, FrameChange:
		frame = &OrderFrame{kind: kind}
	case FrameMatch:
		frame = &MatchFrame{}
	case FrameSubscriptions:
		frame = &SubscriptionsFrame{}
	case FrameError:
		frame = &ErrorFrame{}
	}

	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, domain.NewProtocolError("malformed %s frame: %v", env.Type, err)
	}
	if id, ok := productID(frame); ok && id == "" {
		return nil, domain.NewProtocolError("%s frame without product_id", env.Type)
	}
	return frame, nil
}

// productID reports the market id of frames that belong to a market.
func productID(frame Frame) (string, bool) {
	switch f := frame.(type) {
	case *SnapshotFrame:
		return f.ProductID, true
	case *L2UpdateFrame:
		return f.ProductID, true
	case *TickerFrame:
		return f.ProductID, true
	case *OrderFrame:
		return f.ProductID, true
	case *MatchFrame:
		return f.ProductID, true
	}
	return "", false
}
