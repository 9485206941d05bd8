package coinbase

import (
	"errors"
	"strings"

	"github.com/spooky-finn/marketsync/domain"
	promclient "github.com/spooky-finn/marketsync/infrastructure/prometheus"
	"go.uber.org/zap"
)

const (
	channelLevel2  = "level2"
	channelTicker  = "ticker"
	channelMatches = "matches"
	channelUser    = "user"

	hashMyTrades = "myTrades"
	hashOrders   = "orders"

	authFailedMessage = "Authentication Failed"
)

func messageHash(name, marketID string) string {
	return name + ":" + marketID
}

// TradeSink receives every trade parsed by a dispatcher.
type TradeSink interface {
	TradeReceived(trade domain.Trade, private bool)
}

// Dispatcher handles the frames of one connection, one at a time.
type Dispatcher struct {
	authenticated bool
	state         *domain.MarketState
	markets       domain.MarketResolver
	router        *domain.ChannelRouter
	subs          *subscriptionRegistry
	sinks         []TradeSink
	logger        *zap.Logger

	// onError is called after an error frame rejected every waiter.
	onError func(err error)
}

func NewDispatcher(
	authenticated bool,
	state *domain.MarketState,
	markets domain.MarketResolver,
	router *domain.ChannelRouter,
	subs *subscriptionRegistry,
	logger *zap.Logger,
	sinks ...TradeSink,
) *Dispatcher {
	return &Dispatcher{
		authenticated: authenticated,
		state:         state,
		markets:       markets,
		router:        router,
		subs:          subs,
		sinks:         sinks,
		logger:        logger.Named("dispatcher"),
		onError:       func(error) {},
	}
}

// Handle parses and dispatches one raw frame. A frame that cannot be understood is logged and dropped.
func (d *Dispatcher) Handle(raw []byte) {
	frame, err := ParseFrame(raw)
	if err != nil {
		d.drop("malformed", err, zap.ByteString("frame", raw))
		return
	}
	if err := d.Dispatch(frame); err != nil && errors.Is(err, domain.ErrProtocol) {
		d.drop("protocol", err, zap.Stringer("type", frame.Kind()))
	}
}

// Dispatch routes frame to its handler. Only ErrProtocol errors mean the frame was dropped.
func (d *Dispatcher) Dispatch(frame Frame) error {
	promclient.FramesTotal.WithLabelValues(frame.Kind().String()).Inc()

	switch f := frame.(type) {
	case *SnapshotFrame:
		return d.handleSnapshot(f)
	case *L2UpdateFrame:
		return d.handleL2Update(f)
	case *TickerFrame:
		return d.handleTicker(f)
	case *OrderFrame:
		return d.handleOrder(f)
	case *MatchFrame:
		return d.handleMatch(f)
	case *SubscriptionsFrame:
		for _, ch := range f.Channels {
			d.logger.Debug("subscribed", zap.String("channel", ch.Name), zap.Strings("product_ids", ch.ProductIDs))
		}
		return nil
	case *ErrorFrame:
		return d.handleError(f)
	}
	return domain.NewProtocolError("no handler for %s frame", frame.Kind())
}

func (d *Dispatcher) drop(reason string, err error, fields ...zap.Field) {
	promclient.DroppedFramesTotal.WithLabelValues(reason).Inc()
	d.logger.Warn("dropping frame", append(fields, zap.Error(err))...)
}

func (d *Dispatcher) market(marketID string) (*domain.Market, error) {
	market, err := d.markets.ResolveMarket(marketID)
	if err != nil {
		return nil, domain.NewProtocolError("%v", err)
	}
	return market, nil
}

func (d *Dispatcher) handleSnapshot(f *SnapshotFrame) error {
	market, err := d.market(f.ProductID)
	if err != nil {
		return err
	}
	bids, err := parseLevels(f.Bids)
	if err != nil {
		return err
	}
	asks, err := parseLevels(f.Asks)
	if err != nil {
		return err
	}

	hash := messageHash(channelLevel2, f.ProductID)
	limit := 0
	if sub, ok := d.subs.Get(hash); ok {
		limit = sub.Limit
	}

	snapshot := d.state.Books.LoadSnapshot(market.Symbol, bids, asks, limit)
	promclient.OpenOrderBookGauge.Set(float64(d.state.Books.OrderBookCount()))
	d.router.Resolve(hash, snapshot)
	return nil
}

func (d *Dispatcher) handleL2Update(f *L2UpdateFrame) error {
	market, err := d.market(f.ProductID)
	if err != nil {
		return err
	}
	changes, err := parseChanges(f.Changes)
	if err != nil {
		return err
	}
	timestamp, err := parseTime(f.Time)
	if err != nil {
		return err
	}

	hash := messageHash(channelLevel2, f.ProductID)
	snapshot, err := d.state.Books.ApplyUpdateBatch(market.Symbol, changes, timestamp)
	if err != nil {
		if errors.Is(err, domain.ErrStateViolation) {
			// forget the channel so the next watch subscribes again and gets a fresh snapshot
			promclient.StateViolationsTotal.WithLabelValues("book").Inc()
			d.logger.Error("delta without snapshot", zap.String("market_id", f.ProductID), zap.Error(err))
			if sub, ok := d.subs.Get(hash); ok {
				d.forget(sub)
			}
			d.router.RejectHash(hash, err)
		}
		return err
	}

	d.router.Resolve(hash, snapshot)
	return nil
}

func (d *Dispatcher) handleTicker(f *TickerFrame) error {
	market, err := d.market(f.ProductID)
	if err != nil {
		return err
	}
	ticker, err := parseTicker(f, market)
	if err != nil {
		return err
	}

	d.state.Tickers.Set(ticker)
	d.router.Resolve(messageHash(channelTicker, f.ProductID), ticker)
	return nil
}

// handleMatch routes a match by the connection it arrived on: a private connection only carries
// executions of the client's own orders, a public one carries the market's trades.
func (d *Dispatcher) handleMatch(f *MatchFrame) error {
	market, err := d.market(f.ProductID)
	if err != nil {
		return err
	}
	trade, err := parseTrade(f, market)
	if err != nil {
		return err
	}

	if !d.authenticated {
		trades := d.state.Trades(market.Symbol)
		trades.Append(trade)
		d.publish(trade, false)

		hash := messageHash(channelMatches, f.ProductID)
		if d.router.Pending(hash) > 0 {
			d.router.Resolve(hash, trades.All())
		}
		return nil
	}

	d.state.MyTrades.Append(trade)
	d.publish(trade, true)

	hash := messageHash(hashMyTrades, f.ProductID)
	if d.router.Pending(hash) > 0 {
		d.router.Resolve(hash, d.state.MyTrades.Limit(market.Symbol, 0))
	}

	return d.reconcile(market, domain.OrderEvent{
		Kind:         domain.OrderEventFill,
		Symbol:       market.Symbol,
		Sequence:     f.Sequence,
		MakerOrderID: f.MakerOrderID,
		TakerOrderID: f.TakerOrderID,
		Trade:        trade,
	}, f.ProductID)
}

func (d *Dispatcher) handleOrder(f *OrderFrame) error {
	market, err := d.market(f.ProductID)
	if err != nil {
		return err
	}
	view, err := parseOrder(f, market)
	if err != nil {
		return err
	}

	return d.reconcile(market, domain.OrderEvent{
		Kind:     domain.OrderEventStatus,
		Symbol:   market.Symbol,
		Sequence: f.Sequence,
		OrderID:  f.OrderID,
		View:     view,
	}, f.ProductID)
}

func (d *Dispatcher) reconcile(market *domain.Market, ev domain.OrderEvent, marketID string) error {
	_, applied, err := d.state.Orders.Apply(ev)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotTracked) {
			promclient.StateViolationsTotal.WithLabelValues("order").Inc()
			d.logger.Info("fill for an untracked order",
				zap.String("market_id", marketID),
				zap.String("maker_order_id", ev.MakerOrderID),
				zap.String("taker_order_id", ev.TakerOrderID),
				zap.Int64("sequence", ev.Sequence),
			)
		}
		return err
	}
	if !applied {
		return nil
	}

	hash := messageHash(hashOrders, marketID)
	if d.router.Pending(hash) > 0 {
		d.router.Resolve(hash, d.state.Orders.Orders().Limit(market.Symbol, 0))
	}
	return nil
}

func (d *Dispatcher) handleError(f *ErrorFrame) error {
	var err error
	if f.Message == authFailedMessage {
		err = domain.NewAuthenticationError(f.Reason)
	} else {
		err = domain.NewExchangeError("coinbase", f.Reason)
	}

	n := d.router.Reject(err)
	promclient.RejectedWaitersTotal.Add(float64(n))
	d.logger.Error("error frame", zap.String("message", f.Message), zap.String("reason", f.Reason), zap.Int("rejected", n))
	d.onError(err)
	return err
}

// forget drops sub, and the book it maintained, so the next watch subscribes again and starts from a fresh snapshot.
func (d *Dispatcher) forget(sub *subscription) {
	d.subs.Delete(sub.MessageHash)
	if strings.HasPrefix(sub.MessageHash, channelLevel2+":") {
		d.state.Books.Drop(sub.Symbol)
		promclient.OpenOrderBookGauge.Set(float64(d.state.Books.OrderBookCount()))
	}
}

func (d *Dispatcher) publish(trade domain.Trade, private bool) {
	for _, sink := range d.sinks {
		sink.TradeReceived(trade, private)
	}
}
