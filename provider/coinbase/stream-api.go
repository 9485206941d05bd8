package coinbase

import (
	"context"
	"fmt"

	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/helpers"
	"go.uber.org/zap"
)

const DefaultWebsocketEndpoint = "wss://ws-feed.pro.coinbase.com"

// CoinbaseStreamAPI is the watch surface of the venue.
type CoinbaseStreamAPI struct {
	url     string
	conns   *ConnectionManager
	markets domain.MarketResolver
	auth    *Authenticator
	state   *domain.MarketState
	logger  *zap.Logger
}

// NewCoinbaseStreamAPI builds the api. auth may be nil, private watches then fail with ErrMissingCredentials.
func NewCoinbaseStreamAPI(
	url string,
	conns *ConnectionManager,
	markets domain.MarketResolver,
	auth *Authenticator,
	state *domain.MarketState,
	logger *zap.Logger,
) *CoinbaseStreamAPI {
	if url == "" {
		url = DefaultWebsocketEndpoint
	}
	return &CoinbaseStreamAPI{
		url:     url,
		conns:   conns,
		markets: markets,
		auth:    auth,
		state:   state,
		logger:  logger.Named("coinbase-stream-api"),
	}
}

func (s *CoinbaseStreamAPI) State() *domain.MarketState {
	return s.state
}

func (s *CoinbaseStreamAPI) Close() error {
	s.conns.Close()
	return nil
}

// watch subscribes to channel name for symbol and waits for the next value on hashStart:marketId.
// Params carrying a signature move the request to the private feed.
func (s *CoinbaseStreamAPI) watch(
	ctx context.Context, name, symbol, hashStart string, limit int, params func() map[string]any,
) (any, error) {
	market, err := s.markets.ResolveMarket(symbol)
	if err != nil {
		return nil, err
	}

	url := s.url
	if params != nil {
		if _, ok := params()["signature"]; ok {
			url += privateURLSuffix
		}
	}

	client, err := s.conns.Client(url)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		MessageHash: messageHash(hashStart, market.ID),
		Symbol:      market.Symbol,
		MarketID:    market.ID,
		Limit:       limit,
		request: func() (map[string]any, error) {
			return subscribeRequest(name, market.ID, params), nil
		},
	}
	return client.Watch(ctx, sub)
}

func subscribeRequest(name, marketID string, params func() map[string]any) map[string]any {
	request := map[string]any{
		"type":        "subscribe",
		"product_ids": []string{marketID},
		"channels":    []string{name},
	}
	if params != nil {
		for k, v := range params() {
			request[k] = v
		}
	}
	return request
}

func (s *CoinbaseStreamAPI) WatchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	v, err := s.watch(ctx, channelTicker, symbol, channelTicker, 0, nil)
	if err != nil {
		return domain.Ticker{}, err
	}
	ticker, ok := v.(domain.Ticker)
	if !ok {
		return domain.Ticker{}, fmt.Errorf("unexpected ticker value %T", v)
	}
	return ticker, nil
}

func (s *CoinbaseStreamAPI) WatchTrades(ctx context.Context, symbol string, since int64, limit int) ([]domain.Trade, error) {
	v, err := s.watch(ctx, channelMatches, symbol, channelMatches, 0, nil)
	if err != nil {
		return nil, err
	}
	return filterTrades(v, since, limit)
}

// WatchOrderBook keeps limit as the depth of the book it subscribes to. The returned view is also cut to limit.
func (s *CoinbaseStreamAPI) WatchOrderBook(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error) {
	v, err := s.watch(ctx, channelLevel2, symbol, channelLevel2, limit, nil)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	snapshot, ok := v.(domain.OrderBookSnapshot)
	if !ok {
		return domain.OrderBookSnapshot{}, fmt.Errorf("unexpected order book value %T", v)
	}
	return snapshot.Limit(limit), nil
}

func (s *CoinbaseStreamAPI) WatchOrders(ctx context.Context, symbol string, since int64, limit int) ([]domain.Order, error) {
	if err := s.checkPrivate(symbol, "WatchOrders"); err != nil {
		return nil, err
	}
	v, err := s.watch(ctx, channelUser, symbol, hashOrders, 0, s.auth.Authenticate)
	if err != nil {
		return nil, err
	}
	orders, ok := v.([]domain.Order)
	if !ok {
		return nil, fmt.Errorf("unexpected orders value %T", v)
	}
	return helpers.FilterBySinceLimit(orders, since, limit), nil
}

func (s *CoinbaseStreamAPI) WatchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]domain.Trade, error) {
	if err := s.checkPrivate(symbol, "WatchMyTrades"); err != nil {
		return nil, err
	}
	v, err := s.watch(ctx, channelUser, symbol, hashMyTrades, 0, s.auth.Authenticate)
	if err != nil {
		return nil, err
	}
	return filterTrades(v, since, limit)
}

func (s *CoinbaseStreamAPI) checkPrivate(symbol, method string) error {
	if symbol == "" {
		return fmt.Errorf("%w: coinbase %s requires a symbol", domain.ErrBadSymbol, method)
	}
	if s.auth == nil {
		return fmt.Errorf("%w: coinbase %s requires api key, secret and passphrase", domain.ErrMissingCredentials, method)
	}
	return nil
}

func filterTrades(v any, since int64, limit int) ([]domain.Trade, error) {
	trades, ok := v.([]domain.Trade)
	if !ok {
		return nil, fmt.Errorf("unexpected trades value %T", v)
	}
	return helpers.FilterBySinceLimit(trades, since, limit), nil
}
