package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spooky-finn/marketsync/domain"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultLimit = 100

func (s *server) GetOrderBookSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	provider, symbol, err := s.target(in)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.apiTimeout)
	defer cancel()

	snapshot, err := s.orderbookSnapshotUseCase.GetOrderBookSnapshot(ctx, provider, symbol, intField(in, "max_depth", 0))
	if err != nil {
		return nil, s.statusError("GetOrderBookSnapshot", err)
	}
	return toStruct(snapshot)
}

func (s *server) GetRecentTrades(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	provider, symbol, err := s.target(in)
	if err != nil {
		return nil, err
	}

	trades, err := s.recentTradesUseCase.GetRecentTrades(provider, symbol, intField(in, "limit", defaultLimit))
	if err != nil {
		return nil, s.statusError("GetRecentTrades", err)
	}
	return toStruct(map[string]any{"symbol": symbol.String(), "trades": trades})
}

func (s *server) GetOrders(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	provider, symbol, err := s.target(in)
	if err != nil {
		return nil, err
	}

	orders, err := s.recentTradesUseCase.GetOrders(provider, symbol, intField(in, "limit", defaultLimit))
	if err != nil {
		return nil, s.statusError("GetOrders", err)
	}
	return toStruct(map[string]any{"symbol": symbol.String(), "orders": orders})
}

// target reads the provider and market fields. An empty provider selects the first available one.
func (s *server) target(in *structpb.Struct) (string, *domain.MarketSymbol, error) {
	provider := stringField(in, "provider")
	if provider == "" && len(s.validationService.config.AvailableProviders) > 0 {
		provider = s.validationService.config.AvailableProviders[0]
	}
	if !s.validationService.IsSupportedProvider(provider) {
		return "", nil, status.Errorf(codes.InvalidArgument, "provider %s is not supported", provider)
	}

	market := stringField(in, "market")
	symbol, err := s.validationService.SupportedMarket(market)
	if err != nil {
		return "", nil, status.Errorf(codes.InvalidArgument,
			"invalid market symbol %s. Correct market symbol should use / as a separator: %v", market, err)
	}
	return provider, symbol, nil
}

func (s *server) statusError(method string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, domain.ErrBadSymbol), errors.Is(err, domain.ErrUnknownMarket):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrMissingCredentials), errors.Is(err, domain.ErrAuthentication):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrNotConnected), errors.Is(err, domain.ErrExchange):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	if code == codes.Internal {
		s.logger.Error("request failed", zap.String("method", method), zap.Error(err))
	}
	return status.Error(code, err.Error())
}

func stringField(in *structpb.Struct, name string) string {
	if v, ok := in.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

func intField(in *structpb.Struct, name string, fallback int) int {
	v, ok := in.GetFields()[name]
	if !ok {
		return fallback
	}
	if n := int(v.GetNumberValue()); n > 0 {
		return n
	}
	return fallback
}

// toStruct goes through the json tags of the domain types so decimals travel as strings.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
