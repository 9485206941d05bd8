package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/gen"
	"github.com/spooky-finn/marketsync/provider"
	"github.com/spooky-finn/marketsync/provider/coinbase"
	"github.com/spooky-finn/marketsync/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubStreamAPI struct {
	state *domain.MarketState
}

func (s *stubStreamAPI) WatchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	<-ctx.Done()
	return domain.Ticker{}, ctx.Err()
}

func (s *stubStreamAPI) WatchTrades(ctx context.Context, symbol string, since int64, limit int) ([]domain.Trade, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stubStreamAPI) WatchOrderBook(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error) {
	levels := []domain.PriceLevel{{Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(2)}}
	return s.state.Books.LoadSnapshot(symbol, levels, levels, limit), nil
}

func (s *stubStreamAPI) WatchOrders(ctx context.Context, symbol string, since int64, limit int) ([]domain.Order, error) {
	return nil, domain.ErrMissingCredentials
}

func (s *stubStreamAPI) WatchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]domain.Trade, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stubStreamAPI) State() *domain.MarketState { return s.state }

func (s *stubStreamAPI) Close() error { return nil }

func dialServer(t *testing.T) (*grpc.ClientConn, *stubStreamAPI) {
	t.Helper()
	logger := zap.NewNop()

	api := &stubStreamAPI{state: domain.NewMarketState(domain.DefaultCacheLimits(), logger)}
	resolver := provider.NewAPIResolver(map[string]domain.ProviderStreamAPI{"coinbase": api})
	feed := usecase.NewMarketFeedUseCase(resolver, logger)
	t.Cleanup(feed.Close)

	srv := NewServer(
		usecase.NewOrderBookSnapshotUseCase(resolver, logger),
		usecase.NewRecentTradesUseCase(resolver, feed, logger),
		&ValidationServiceConfig{
			AvailableProviders: resolver.Providers(),
			Markets:            coinbase.NewMarketRegistry(coinbase.DefaultMarkets()),
		},
		logger,
	)
	grpcServer, _ := NewGRPCServer(srv)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, api
}

func invoke(conn *grpc.ClientConn, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	client := gen.NewMarketDataServiceClient(conn)
	ctx := context.Background()
	switch method {
	case "GetOrderBookSnapshot":
		return client.GetOrderBookSnapshot(ctx, in)
	case "GetRecentTrades":
		return client.GetRecentTrades(ctx, in)
	case "GetOrders":
		return client.GetOrders(ctx, in)
	}
	return nil, status.Errorf(codes.Unimplemented, "unknown method %s", method)
}

func TestGetOrderBookSnapshot(t *testing.T) {
	conn, _ := dialServer(t)

	out, err := invoke(conn, "GetOrderBookSnapshot", map[string]any{"market": "btc-usd", "max_depth": 10})
	require.NoError(t, err)

	fields := out.GetFields()
	assert.Equal(t, "BTC/USD", fields["symbol"].GetStringValue())
	bids := fields["bids"].GetListValue().GetValues()
	require.Len(t, bids, 1)
	assert.Equal(t, "100", bids[0].GetStructValue().GetFields()["price"].GetStringValue())
}

func TestGetRecentTrades(t *testing.T) {
	conn, api := dialServer(t)

	cache := api.state.Trades("BTC/USD")
	for i, ts := range []int64{1, 2, 3} {
		cache.Append(domain.Trade{
			ID:        string(rune('a' + i)),
			Symbol:    "BTC/USD",
			Price:     decimal.NewFromInt(100),
			Amount:    decimal.NewFromInt(1),
			Timestamp: ts,
		})
	}

	out, err := invoke(conn, "GetRecentTrades", map[string]any{"provider": "coinbase", "market": "BTC/USD", "limit": 2})
	require.NoError(t, err)

	trades := out.GetFields()["trades"].GetListValue().GetValues()
	require.Len(t, trades, 2)
	assert.Equal(t, "b", trades[0].GetStructValue().GetFields()["id"].GetStringValue())
	assert.Equal(t, "c", trades[1].GetStructValue().GetFields()["id"].GetStringValue())
}

func TestRequestValidation(t *testing.T) {
	conn, _ := dialServer(t)

	_, err := invoke(conn, "GetRecentTrades", map[string]any{"provider": "binance", "market": "BTC/USD"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(conn, "GetRecentTrades", map[string]any{"market": "BTCUSD"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(conn, "GetRecentTrades", map[string]any{"market": "DOGE/USD"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetOrders(t *testing.T) {
	conn, api := dialServer(t)

	api.state.Orders.Restore([]domain.Order{
		{ID: "o-1", Symbol: "BTC/USD", Status: domain.OrderStatusOpen, Timestamp: 1},
		{ID: "o-2", Symbol: "ETH/USD", Status: domain.OrderStatusOpen, Timestamp: 2},
	})

	out, err := invoke(conn, "GetOrders", map[string]any{"market": "BTC/USD"})
	require.NoError(t, err)

	orders := out.GetFields()["orders"].GetListValue().GetValues()
	require.Len(t, orders, 1)
	assert.Equal(t, "o-1", orders[0].GetStructValue().GetFields()["id"].GetStringValue())
	assert.Equal(t, "open", orders[0].GetStructValue().GetFields()["status"].GetStringValue())
}

func TestHealth(t *testing.T) {
	conn, _ := dialServer(t)

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: gen.MarketDataService_ServiceDesc.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}
