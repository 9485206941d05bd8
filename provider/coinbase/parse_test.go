package coinbase

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var btcusd = &domain.Market{ID: "BTC-USD", Symbol: "BTC/USD", Base: "BTC", Quote: "USD"}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustParse(t *testing.T, raw string) Frame {
	t.Helper()
	frame, err := ParseFrame([]byte(raw))
	require.NoError(t, err)
	return frame
}

func TestParseFrame_Kinds(t *testing.T) {
	tests := []struct {
		raw  string
		kind FrameKind
	}{
		{`{"type":"snapshot","product_id":"BTC-USD","bids":[],"asks":[]}`, FrameSnapshot},
		{`{"type":"l2update","product_id":"BTC-USD","changes":[]}`, FrameL2Update},
		{`{"type":"ticker","product_id":"BTC-USD"}`, FrameTicker},
		{`{"type":"received","product_id":"BTC-USD"}`, FrameReceived},
		{`{"type":"open","product_id":"BTC-USD"}`, FrameOpen},
		{`{"type":"done","product_id":"BTC-USD"}`, FrameDone},
		{`{"type":"change","product_id":"BTC-USD"}`, FrameChange},
		{`{"type":"match","product_id":"BTC-USD"}`, FrameMatch},
		{`{"type":"subscriptions","channels":[{"name":"level2","product_ids":["ETH-BTC"]}]}`, FrameSubscriptions},
		{`{"type":"error","message":"boom"}`, FrameError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, mustParse(t, tt.raw).Kind())
		})
	}
}

func TestParseFrame_ProtocolErrors(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"heartbeat"}`,
		`{"type":"l2update","changes":[]}`,
		`{"type":"ticker","product_id":"BTC-USD","price":"abc"}`,
	} {
		_, err := ParseFrame([]byte(raw))
		assert.True(t, errors.Is(err, domain.ErrProtocol), raw)
	}
}

func TestParseTrade_PublicTakerView(t *testing.T) {
	f := mustParse(t, `{
		"type": "match", "trade_id": 82047307,
		"maker_order_id": "0f358725", "taker_order_id": "252b7002",
		"side": "sell", "size": "0.5", "price": "9314.78",
		"product_id": "BTC-USD", "sequence": 12038915443,
		"time": "2020-01-31T20:03:41.158814Z"
	}`).(*MatchFrame)

	trade, err := parseTrade(f, btcusd)
	require.NoError(t, err)

	assert.Equal(t, "82047307", trade.ID)
	assert.Equal(t, "BTC/USD", trade.Symbol)
	assert.Equal(t, domain.Taker, trade.TakerOrMaker)
	assert.Equal(t, domain.SideBuy, trade.Side, "the frame side is the maker's")
	assert.True(t, trade.Cost.Equal(dec("4657.39")))
	assert.Equal(t, int64(1580501021158), trade.Timestamp)
	assert.False(t, trade.Fee.Cost.Valid)
	assert.Equal(t, "USD", trade.Fee.Currency)
	assert.Empty(t, trade.Order)
}

func TestParseTrade_PrivateFees(t *testing.T) {
	maker := mustParse(t, `{"type":"match","trade_id":10,"sequence":50,"maker_order_id":"m1","taker_order_id":"t1",
		"time":"2014-11-07T08:19:27.028459Z","product_id":"BTC-USD","size":"2","price":"400","side":"sell","maker_fee_rate":"0.001"}`).(*MatchFrame)
	taker := mustParse(t, `{"type":"match","trade_id":11,"sequence":51,"maker_order_id":"m1","taker_order_id":"t1",
		"time":"2014-11-07T08:19:27.028459Z","product_id":"BTC-USD","size":"2","price":"400","side":"sell","taker_fee_rate":"0.005"}`).(*MatchFrame)

	trade, err := parseTrade(maker, btcusd)
	require.NoError(t, err)
	assert.Equal(t, domain.Maker, trade.TakerOrMaker)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.Equal(t, "m1", trade.Order)
	assert.True(t, trade.Fee.Cost.Decimal.Equal(dec("0.8")))
	assert.True(t, trade.Fee.Rate.Decimal.Equal(dec("0.001")))

	trade, err = parseTrade(taker, btcusd)
	require.NoError(t, err)
	assert.Equal(t, domain.Taker, trade.TakerOrMaker)
	assert.Equal(t, "t1", trade.Order)
	assert.True(t, trade.Fee.Cost.Decimal.Equal(dec("4")))
}

func TestParseTrade_MissingPrice(t *testing.T) {
	f := mustParse(t, `{"type":"match","trade_id":1,"product_id":"BTC-USD","side":"buy","size":"1"}`).(*MatchFrame)
	_, err := parseTrade(f, btcusd)
	assert.True(t, errors.Is(err, domain.ErrProtocol))
}

func TestParseOrder(t *testing.T) {
	t.Run("received with size", func(t *testing.T) {
		f := mustParse(t, `{"type":"received","side":"sell","product_id":"BTC-USD","time":"2021-03-05T16:42:21.878177Z",
			"sequence":5641953814,"order_id":"o1","order_type":"limit","size":"0.0001","price":"50000","client_oid":"c1"}`).(*OrderFrame)
		order, err := parseOrder(f, btcusd)
		require.NoError(t, err)

		assert.Equal(t, "o1", order.ID)
		assert.Equal(t, "c1", order.ClientOrderID)
		assert.Equal(t, domain.SideSell, order.Side)
		assert.Equal(t, "limit", order.Type)
		assert.True(t, order.Filled.Decimal.IsZero())
		assert.True(t, order.Remaining.Decimal.Equal(dec("0.0001")))
		assert.True(t, order.Cost.Decimal.Equal(dec("5")))
		assert.Equal(t, domain.OrderStatusOpen, order.Status)
	})

	t.Run("received market order with funds", func(t *testing.T) {
		f := mustParse(t, `{"type":"received","product_id":"BTC-USD","sequence":12,"order_id":"o2","funds":"3000.234","side":"buy","order_type":"market"}`).(*OrderFrame)
		order, err := parseOrder(f, btcusd)
		require.NoError(t, err)
		assert.True(t, order.Amount.Decimal.Equal(dec("3000.234")))
		assert.False(t, order.Cost.Valid)
	})

	t.Run("open reports only what is left", func(t *testing.T) {
		f := mustParse(t, `{"type":"open","product_id":"BTC-USD","order_id":"o1","price":"50000","remaining_size":"0.0001","side":"sell"}`).(*OrderFrame)
		order, err := parseOrder(f, btcusd)
		require.NoError(t, err)
		assert.False(t, order.Amount.Valid)
		assert.False(t, order.Filled.Valid)
		assert.True(t, order.Remaining.Valid)
	})

	t.Run("done maps the reason", func(t *testing.T) {
		f := mustParse(t, `{"type":"done","product_id":"BTC-USD","order_id":"o1","reason":"canceled","side":"buy"}`).(*OrderFrame)
		order, err := parseOrder(f, btcusd)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCanceled, order.Status)
	})

	t.Run("change carries the new size", func(t *testing.T) {
		f := mustParse(t, `{"type":"change","product_id":"BTC-USD","order_id":"o1","new_size":"5","old_size":"12","price":"400","side":"sell"}`).(*OrderFrame)
		order, err := parseOrder(f, btcusd)
		require.NoError(t, err)
		assert.True(t, order.Amount.Decimal.Equal(dec("5")))
	})
}

func TestParseTicker(t *testing.T) {
	f := mustParse(t, `{"type":"ticker","sequence":7388547310,"product_id":"BTC-USD","price":"22345.67","open_24h":"22308.13",
		"volume_24h":"470.21123644","low_24h":"22150","high_24h":"22495.15","best_bid":"22345.67","best_bid_size":"0.10647825",
		"best_ask":"22349.68","best_ask_size":"0.03131702","side":"sell","time":"2023-03-04T03:37:20.799258Z"}`).(*TickerFrame)

	ticker, err := parseTicker(f, btcusd)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", ticker.Symbol)
	assert.True(t, ticker.Last.Decimal.Equal(dec("22345.67")))
	assert.Equal(t, ticker.Last, ticker.Close)
	assert.True(t, ticker.High.Decimal.Equal(dec("22495.15")))
	assert.True(t, ticker.AskVolume.Decimal.Equal(dec("0.03131702")))
	assert.True(t, ticker.BaseVolume.Decimal.Equal(dec("470.21123644")))
	assert.Equal(t, int64(1677901040799), ticker.Timestamp)
}

func TestParseChanges(t *testing.T) {
	changes, err := parseChanges([][]string{{"buy", "10101.8", "0.162567"}, {"sell", "10102", "0"}})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.SideBuy, changes[0].Side)
	assert.True(t, changes[1].Amount.IsZero())

	_, err = parseChanges([][]string{{"up", "1", "1"}})
	assert.True(t, errors.Is(err, domain.ErrProtocol))

	_, err = parseChanges([][]string{{"buy", "1"}})
	assert.True(t, errors.Is(err, domain.ErrProtocol))
}
