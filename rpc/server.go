package rpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spooky-finn/marketsync/gen"
	"github.com/spooky-finn/marketsync/usecase"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

//go:generate protoc -I ../proto --go-grpc_out=../gen --go-grpc_opt=paths=source_relative ../proto/marketdata.proto

type server struct {
	gen.UnimplementedMarketDataServiceServer
	orderbookSnapshotUseCase *usecase.OrderBookSnapshotUseCase
	recentTradesUseCase      *usecase.RecentTradesUseCase
	validationService        *ValidationService
	apiTimeout               time.Duration
	logger                   *zap.Logger
}

func NewServer(
	orderbookSnapshotUseCase *usecase.OrderBookSnapshotUseCase,
	recentTradesUseCase *usecase.RecentTradesUseCase,
	conf *ValidationServiceConfig,
	logger *zap.Logger,
) *server {
	return &server{
		orderbookSnapshotUseCase: orderbookSnapshotUseCase,
		recentTradesUseCase:      recentTradesUseCase,
		validationService:        NewValidationService(conf),
		apiTimeout:               10 * time.Second,
		logger:                   logger.Named("rpc"),
	}
}

// NewGRPCServer builds a grpc server carrying the market data service and the health service.
func NewGRPCServer(srv *server) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(srv.logger)))
	gen.RegisterMarketDataServiceServer(s, srv)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(gen.MarketDataService_ServiceDesc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return s, healthServer
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := uuid.NewString()
		start := time.Now()

		resp, err := handler(ctx, req)
		logger.Debug("request",
			zap.String("request_id", requestID),
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
			zap.Stringer("code", status.Code(err)),
		)
		return resp, err
	}
}
