package coinbase

import (
	"time"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/shopspring/decimal"
	"github.com/spooky-finn/marketsync/domain"
)

// parseTime converts the ISO 8601 time of a frame to ms. An absent time is 0.
func parseTime(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, domain.NewProtocolError("bad time %q", s)
	}
	return t.UnixMilli(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.NewProtocolError("bad number %q", s)
	}
	return v, nil
}

func parseLevels(rows [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, domain.NewProtocolError("price level %v has %d fields", row, len(row))
		}
		price, err := parseDecimal(row[0])
		if err != nil {
			return nil, err
		}
		amount, err := parseDecimal(row[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.PriceLevel{Price: price, Amount: amount})
	}
	return levels, nil
}

func parseChanges(rows [][]string) ([]domain.BookChange, error) {
	changes := make([]domain.BookChange, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			return nil, domain.NewProtocolError("book change %v has %d fields", row, len(row))
		}
		side, err := domain.ParseSide(row[0])
		if err != nil {
			return nil, domain.NewProtocolError("%v", err)
		}
		price, err := parseDecimal(row[1])
		if err != nil {
			return nil, err
		}
		amount, err := parseDecimal(row[2])
		if err != nil {
			return nil, err
		}
		changes = append(changes, domain.BookChange{Side: side, Price: price, Amount: amount})
	}
	return changes, nil
}

func parseTicker(f *TickerFrame, market *domain.Market) (domain.Ticker, error) {
	timestamp, err := parseTime(f.Time)
	if err != nil {
		return domain.Ticker{}, err
	}
	return domain.Ticker{
		Symbol:     market.Symbol,
		Timestamp:  timestamp,
		High:       f.High24h,
		Low:        f.Low24h,
		Bid:        f.BestBid,
		BidVolume:  f.BestBidSize,
		Ask:        f.BestAsk,
		AskVolume:  f.BestAskSize,
		Open:       f.Open24h,
		Close:      f.Price,
		Last:       f.Price,
		BaseVolume: f.Volume24h,
	}, nil
}

func oppositeSide(side domain.Side) domain.Side {
	if side == domain.SideBuy {
		return domain.SideSell
	}
	return domain.SideBuy
}

// parseTrade builds a trade from a match. The side of a match is the maker's side,
// the trade is reported from the point of view of the client's role, the taker unless a maker fee rate is present.
func parseTrade(f *MatchFrame, market *domain.Market) (domain.Trade, error) {
	if !f.Price.Valid || !f.Size.Valid {
		return domain.Trade{}, domain.NewProtocolError("match %d without price or size", f.TradeID)
	}
	makerSide, err := domain.ParseSide(f.Side)
	if err != nil {
		return domain.Trade{}, domain.NewProtocolError("%v", err)
	}
	timestamp, err := parseTime(f.Time)
	if err != nil {
		return domain.Trade{}, err
	}

	trade := domain.Trade{
		ID:           kucoin.IntToString(f.TradeID),
		Symbol:       market.Symbol,
		MakerOrderID: f.MakerOrderID,
		TakerOrderID: f.TakerOrderID,
		Price:        f.Price.Decimal,
		Amount:       f.Size.Decimal,
		Cost:         f.Price.Decimal.Mul(f.Size.Decimal),
		Timestamp:    timestamp,
	}

	var rate decimal.NullDecimal
	if f.MakerFeeRate.Valid {
		trade.TakerOrMaker = domain.Maker
		trade.Side = makerSide
		trade.Order = f.MakerOrderID
		rate = f.MakerFeeRate
	} else {
		trade.TakerOrMaker = domain.Taker
		trade.Side = oppositeSide(makerSide)
		rate = f.TakerFeeRate
		if rate.Valid {
			trade.Order = f.TakerOrderID
		}
	}

	trade.Fee = domain.Fee{Rate: rate, Currency: market.Quote}
	if rate.Valid {
		trade.Fee.Cost = domain.NullDecimal(trade.Cost.Mul(rate.Decimal))
	}
	return trade, nil
}

// parseOrder builds the order view a lifecycle frame describes. Fields the frame is silent on stay null.
func parseOrder(f *OrderFrame, market *domain.Market) (domain.Order, error) {
	timestamp, err := parseTime(f.Time)
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:            f.OrderID,
		ClientOrderID: f.ClientOID,
		Symbol:        market.Symbol,
		Type:          f.OrderType,
		Price:         f.Price,
		Remaining:     f.RemainingSize,
		Status:        domain.OrderStatusFromReason(f.Reason),
		Timestamp:     timestamp,
	}
	if f.Side != "" {
		if order.Side, err = domain.ParseSide(f.Side); err != nil {
			return domain.Order{}, domain.NewProtocolError("%v", err)
		}
	}

	switch {
	case f.Size.Valid:
		order.Amount = f.Size
	case f.Funds.Valid:
		order.Amount = f.Funds
	case f.kind == FrameChange && f.NewSize.Valid:
		order.Amount = f.NewSize
	}

	if order.Amount.Valid && order.Remaining.Valid {
		order.Filled = domain.NullDecimal(order.Amount.Decimal.Sub(order.Remaining.Decimal))
	} else if f.kind == FrameReceived {
		order.Filled = domain.NullDecimal(decimal.Zero)
		if order.Amount.Valid {
			order.Remaining = order.Amount
		}
	}

	if order.Price.Valid && order.Amount.Valid {
		order.Cost = domain.NullDecimal(order.Price.Decimal.Mul(order.Amount.Decimal))
	}
	return order, nil
}
