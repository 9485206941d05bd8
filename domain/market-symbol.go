package domain

import (
	"fmt"
	"strings"
)

type MarketSymbol struct {
	BaseAsset  string
	QuoteAsset string
}

func NewMarketSymbol(base string, quote string) (*MarketSymbol, error) {
	if base == "" || quote == "" {
		return nil, fmt.Errorf("base and quote must not be empty")
	}
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	if base == quote {
		return nil, fmt.Errorf("base and quote must be different")
	}
	return &MarketSymbol{
		BaseAsset:  base,
		QuoteAsset: quote,
	}, nil
}

// NewMarketSymbolFromString accepts the unified form (BTC/USD), the venue form (BTC-USD) and BTC_USD.
func NewMarketSymbolFromString(s string) (*MarketSymbol, error) {
	split := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '-' || r == '_'
	})

	if len(split) != 2 {
		return nil, fmt.Errorf("invalid symbol string %q", s)
	}

	return NewMarketSymbol(split[0], split[1])
}

func (ms *MarketSymbol) Join(separator string) string {
	return fmt.Sprintf("%s%s%s", ms.BaseAsset, separator, ms.QuoteAsset)
}

// String returns the unified symbol.
func (ms *MarketSymbol) String() string {
	return ms.Join("/")
}

func (ms *MarketSymbol) Equal(other *MarketSymbol) bool {
	return ms.BaseAsset == other.BaseAsset && ms.QuoteAsset == other.QuoteAsset
}

// Market binds the venue-native market id to its unified symbol.
type Market struct {
	ID     string `json:"id" yaml:"id"`
	Symbol string `json:"symbol" yaml:"symbol"`
	Base   string `json:"base" yaml:"base"`
	Quote  string `json:"quote" yaml:"quote"`
}

func NewMarket(symbol *MarketSymbol) *Market {
	return &Market{
		ID:     symbol.Join("-"),
		Symbol: symbol.String(),
		Base:   symbol.BaseAsset,
		Quote:  symbol.QuoteAsset,
	}
}

// MarketResolver is the market metadata collaborator.
type MarketResolver interface {
	// ResolveMarket accepts either a unified symbol or a venue market id.
	ResolveMarket(symbolOrID string) (*Market, error)
}
