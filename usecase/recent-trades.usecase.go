package usecase

import (
	"github.com/spooky-finn/marketsync/domain"
	"go.uber.org/zap"
)

// RecentTradesUseCase serves the trade and order caches. Reading a symbol starts following it.
type RecentTradesUseCase struct {
	connManager domain.ConnManager
	feed        *MarketFeedUseCase
	logger      *zap.Logger
}

func NewRecentTradesUseCase(connManager domain.ConnManager, feed *MarketFeedUseCase, logger *zap.Logger) *RecentTradesUseCase {
	return &RecentTradesUseCase{
		connManager: connManager,
		feed:        feed,
		logger:      logger.Named("recent-trades-usecase"),
	}
}

func (u *RecentTradesUseCase) GetRecentTrades(provider string, symbol *domain.MarketSymbol, limit int) ([]domain.Trade, error) {
	api, err := u.connManager.StreamAPI(provider)
	if err != nil {
		return nil, err
	}
	if err := u.feed.Follow(provider, symbol.String(), ChannelTrades); err != nil {
		return nil, err
	}
	return api.State().Trades(symbol.String()).Limit(symbol.String(), limit), nil
}

func (u *RecentTradesUseCase) GetOrders(provider string, symbol *domain.MarketSymbol, limit int) ([]domain.Order, error) {
	api, err := u.connManager.StreamAPI(provider)
	if err != nil {
		return nil, err
	}
	if err := u.feed.Follow(provider, symbol.String(), ChannelOrders); err != nil {
		return nil, err
	}
	return api.State().Orders.Orders().Limit(symbol.String(), limit), nil
}
