package rpc

import "github.com/spooky-finn/marketsync/domain"

type ValidationServiceConfig struct {
	AvailableProviders []string
	Markets            domain.MarketResolver
}

type ValidationService struct {
	config *ValidationServiceConfig
}

func NewValidationService(config *ValidationServiceConfig) *ValidationService {
	return &ValidationService{
		config: config,
	}
}

func (s *ValidationService) IsSupportedProvider(provider string) bool {
	for _, p := range s.config.AvailableProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// SupportedMarket parses market and checks the venue lists it.
func (s *ValidationService) SupportedMarket(market string) (*domain.MarketSymbol, error) {
	symbol, err := domain.NewMarketSymbolFromString(market)
	if err != nil {
		return nil, err
	}
	if s.config.Markets != nil {
		if _, err := s.config.Markets.ResolveMarket(symbol.String()); err != nil {
			return nil, err
		}
	}
	return symbol, nil
}
