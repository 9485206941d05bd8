package usecase

import (
	"context"
	"errors"

	"github.com/spooky-finn/marketsync/domain"
	"go.uber.org/zap"
)

type OrderBookSnapshotUseCase struct {
	connManager domain.ConnManager
	logger      *zap.Logger
}

func NewOrderBookSnapshotUseCase(connManager domain.ConnManager, logger *zap.Logger) *OrderBookSnapshotUseCase {
	return &OrderBookSnapshotUseCase{
		connManager: connManager,
		logger:      logger.Named("orderbook-snapshot-usecase"),
	}
}

// GetOrderBookSnapshot returns the maintained book of symbol. A book that is not maintained yet
// is subscribed to and the call waits for its first snapshot.
func (o *OrderBookSnapshotUseCase) GetOrderBookSnapshot(
	ctx context.Context, provider string, symbol *domain.MarketSymbol, limit int,
) (domain.OrderBookSnapshot, error) {
	api, err := o.connManager.StreamAPI(provider)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}

	snapshot, err := api.State().Books.TakeSnapshot(symbol.String(), limit)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, domain.ErrOrderBookNotFound) {
		return domain.OrderBookSnapshot{}, err
	}

	o.logger.Info("orderbook is not maintained yet, subscribing",
		zap.String("provider", provider), zap.String("symbol", symbol.String()))
	return api.WatchOrderBook(ctx, symbol.String(), limit)
}
