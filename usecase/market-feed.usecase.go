package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/spooky-finn/marketsync/domain"
	"go.uber.org/zap"
)

type Channel string

const (
	ChannelOrderBook Channel = "orderbook"
	ChannelTrades    Channel = "trades"
	ChannelTicker    Channel = "ticker"
	ChannelOrders    Channel = "orders"
	ChannelMyTrades  Channel = "mytrades"
)

// MarketFeedUseCase keeps channels subscribed so their stores stay current without a caller waiting on them.
type MarketFeedUseCase struct {
	connManager domain.ConnManager
	logger      *zap.Logger

	mu       sync.Mutex
	followed map[string]func()
}

func NewMarketFeedUseCase(connManager domain.ConnManager, logger *zap.Logger) *MarketFeedUseCase {
	return &MarketFeedUseCase{
		connManager: connManager,
		logger:      logger.Named("market-feed-usecase"),
		followed:    make(map[string]func()),
	}
}

func followKey(provider, symbol string, channel Channel) string {
	return provider + "/" + symbol + "/" + string(channel)
}

// Follow starts following channel of symbol unless it is followed already.
func (u *MarketFeedUseCase) Follow(provider, symbol string, channel Channel) error {
	api, err := u.connManager.StreamAPI(provider)
	if err != nil {
		return err
	}

	key := followKey(provider, symbol, channel)
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.followed[key]; ok {
		return nil
	}

	errs := make(chan error, 1)
	var stop func()
	switch channel {
	case ChannelOrderBook:
		stop = drain(domain.Follow(context.Background(), key, func(ctx context.Context) (domain.OrderBookSnapshot, error) {
			return api.WatchOrderBook(ctx, symbol, 0)
		}, errs))
	case ChannelTrades:
		stop = drain(domain.Follow(context.Background(), key, func(ctx context.Context) ([]domain.Trade, error) {
			return api.WatchTrades(ctx, symbol, 0, 0)
		}, errs))
	case ChannelTicker:
		stop = drain(domain.Follow(context.Background(), key, func(ctx context.Context) (domain.Ticker, error) {
			return api.WatchTicker(ctx, symbol)
		}, errs))
	case ChannelOrders:
		stop = drain(domain.Follow(context.Background(), key, func(ctx context.Context) ([]domain.Order, error) {
			return api.WatchOrders(ctx, symbol, 0, 0)
		}, errs))
	case ChannelMyTrades:
		stop = drain(domain.Follow(context.Background(), key, func(ctx context.Context) ([]domain.Trade, error) {
			return api.WatchMyTrades(ctx, symbol, 0, 0)
		}, errs))
	default:
		return errors.New("unknown channel " + string(channel))
	}

	u.followed[key] = stop
	go u.watchErrors(key, errs)
	u.logger.Info("following", zap.String("provider", provider), zap.String("symbol", symbol), zap.String("channel", string(channel)))
	return nil
}

// watchErrors forgets a follow that ended with an error, so the next Follow starts it again.
func (u *MarketFeedUseCase) watchErrors(key string, errs <-chan error) {
	err, ok := <-errs
	if !ok {
		return
	}

	u.mu.Lock()
	stop, found := u.followed[key]
	delete(u.followed, key)
	u.mu.Unlock()

	if found {
		stop()
	}
	u.logger.Warn("follow stopped", zap.String("key", key), zap.Error(err))
}

func (u *MarketFeedUseCase) Following(provider, symbol string, channel Channel) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.followed[followKey(provider, symbol, channel)]
	return ok
}

func (u *MarketFeedUseCase) Close() {
	u.mu.Lock()
	followed := u.followed
	u.followed = make(map[string]func())
	u.mu.Unlock()

	for _, stop := range followed {
		stop()
	}
}

// drain discards the values of sub, the stores are what callers read.
func drain[T any](sub *domain.Subscription[T]) func() {
	go func() {
		for range sub.Stream {
		}
	}()
	return sub.Unsubscribe
}
