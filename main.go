package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spooky-finn/marketsync/config"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/infrastructure/kafka"
	"github.com/spooky-finn/marketsync/infrastructure/logging"
	promclient "github.com/spooky-finn/marketsync/infrastructure/prometheus"
	"github.com/spooky-finn/marketsync/infrastructure/sqlite"
	"github.com/spooky-finn/marketsync/provider"
	"github.com/spooky-finn/marketsync/provider/coinbase"
	"github.com/spooky-finn/marketsync/rpc"
	"github.com/spooky-finn/marketsync/usecase"
	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "marketsync"

func main() {
	conf := config.Load(serviceName)
	if err := conf.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.NewLogger(conf.ServiceName, conf.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(conf, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(conf *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	markets, err := config.LoadMarkets(conf.MarketsFile)
	if err != nil {
		return err
	}
	if len(markets) == 0 {
		markets = coinbase.DefaultMarkets()
	}
	registry := coinbase.NewMarketRegistry(markets)

	var (
		orderSinks []domain.OrderSink
		tradeSinks []coinbase.TradeSink
		restored   []domain.Order
	)

	if conf.JournalPath != "" {
		journal, err := sqlite.Open(conf.JournalPath, logger)
		if err != nil {
			return err
		}
		defer journal.Close()

		restored, err = journal.Load(ctx)
		if err != nil {
			return err
		}
		orderSinks = append(orderSinks, journal)
	}

	if len(conf.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(conf.KafkaBrokers, conf.KafkaTopic, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			publisher.Close(closeCtx)
		}()
		orderSinks = append(orderSinks, publisher)
		tradeSinks = append(tradeSinks, publisher)
	}

	state := domain.NewMarketState(conf.CacheLimits(), logger, orderSinks...)
	state.Orders.Restore(restored)
	logger.Info("state ready", zap.Int("markets", len(markets)), zap.Int("restored_orders", len(restored)))

	var auth *coinbase.Authenticator
	creds := coinbase.Credentials{APIKey: conf.APIKey, Secret: conf.APISecret, Passphrase: conf.Passphrase}
	if creds.Complete() {
		if auth, err = coinbase.NewAuthenticator(creds); err != nil {
			return err
		}
	} else {
		logger.Warn("credentials are not set, private channels are disabled")
	}

	conns := coinbase.NewConnectionManager(state, registry, logger, tradeSinks...)
	streamAPI := coinbase.NewCoinbaseStreamAPI(conf.WebsocketURL, conns, registry, auth, state, logger)
	resolver := provider.NewAPIResolver(map[string]domain.ProviderStreamAPI{"coinbase": streamAPI})
	defer resolver.Close()

	feed := usecase.NewMarketFeedUseCase(resolver, logger)
	defer feed.Close()
	for _, symbol := range conf.WatchSymbols {
		channels := []usecase.Channel{usecase.ChannelOrderBook, usecase.ChannelTrades, usecase.ChannelTicker}
		if auth != nil {
			channels = append(channels, usecase.ChannelOrders, usecase.ChannelMyTrades)
		}
		for _, channel := range channels {
			if err := feed.Follow("coinbase", symbol, channel); err != nil {
				logger.Error("failed to follow", zap.String("symbol", symbol), zap.String("channel", string(channel)), zap.Error(err))
			}
		}
	}

	metricsServer := promclient.StartPromClientServer(conf.MetricsAddr, logger)
	defer metricsServer.Close()

	srv := rpc.NewServer(
		usecase.NewOrderBookSnapshotUseCase(resolver, logger),
		usecase.NewRecentTradesUseCase(resolver, feed, logger),
		&rpc.ValidationServiceConfig{AvailableProviders: resolver.Providers(), Markets: registry},
		logger,
	)
	grpcServer, healthServer := rpc.NewGRPCServer(srv)

	lis, err := net.Listen("tcp", conf.GRPCAddr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		grpcServer.GracefulStop()
		return nil
	case err := <-serveErr:
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
}
