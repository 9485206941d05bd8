package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func levels(pairs ...string) []PriceLevel {
	result := make([]PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		result = append(result, PriceLevel{Price: d(pairs[i]), Amount: d(pairs[i+1])})
	}
	return result
}

func prices(depth []PriceLevel) []string {
	result := make([]string, len(depth))
	for i, level := range depth {
		result[i] = level.Price.String()
	}
	return result
}

func TestOrderBookStorage_LoadSnapshot(t *testing.T) {
	storage := NewOrderBookStorage()

	snapshot := storage.LoadSnapshot("BTC/USD",
		levels("9900", "2", "10000", "1", "9950", "0"),
		levels("10200", "2.5", "10100", "1.5"),
		0,
	)

	assert.Equal(t, "BTC/USD", snapshot.Symbol)
	assert.Equal(t, []string{"10000", "9900"}, prices(snapshot.Bids), "bids should be sorted descending without zero levels")
	assert.Equal(t, []string{"10100", "10200"}, prices(snapshot.Asks), "asks should be sorted ascending")
	assert.Zero(t, snapshot.Timestamp, "timestamp is unknown at snapshot time")
	assert.Equal(t, 1, storage.OrderBookCount())
}

func TestOrderBookStorage_SnapshotReplaces(t *testing.T) {
	storage := NewOrderBookStorage()
	storage.LoadSnapshot("BTC/USD", levels("100", "1", "99", "1"), levels("101", "1"), 0)
	_, err := storage.ApplyUpdateBatch("BTC/USD", []BookChange{{Side: SideBuy, Price: d("98"), Amount: d("3")}}, 1000)
	require.NoError(t, err)

	snapshot := storage.LoadSnapshot("BTC/USD", levels("50", "1"), levels("60", "2"), 0)

	assert.Equal(t, []string{"50"}, prices(snapshot.Bids), "old bids must be discarded")
	assert.Equal(t, []string{"60"}, prices(snapshot.Asks), "old asks must be discarded")
	assert.Zero(t, snapshot.Timestamp)
}

func TestOrderBookStorage_ApplyDeltaIsIdempotent(t *testing.T) {
	once := NewOrderBookStorage()
	twice := NewOrderBookStorage()
	for _, storage := range []*OrderBookStorage{once, twice} {
		storage.LoadSnapshot("ETH/USD", levels("10", "1"), levels("11", "1"), 0)
	}

	deltas := []BookChange{
		{Side: SideBuy, Price: d("9.5"), Amount: d("4")},
		{Side: SideSell, Price: d("11"), Amount: d("0")},
		{Side: SideSell, Price: d("12"), Amount: d("0")},
	}
	for _, delta := range deltas {
		require.NoError(t, once.ApplyDelta("ETH/USD", delta.Side, delta.Price, delta.Amount))
		require.NoError(t, twice.ApplyDelta("ETH/USD", delta.Side, delta.Price, delta.Amount))
		require.NoError(t, twice.ApplyDelta("ETH/USD", delta.Side, delta.Price, delta.Amount))
	}

	a, err := once.TakeSnapshot("ETH/USD", 0)
	require.NoError(t, err)
	b, err := twice.TakeSnapshot("ETH/USD", 0)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, []string{"10", "9.5"}, prices(a.Bids))
	assert.Empty(t, a.Asks)
}

func TestOrderBookStorage_ApplyDeltaReplacesLevel(t *testing.T) {
	storage := NewOrderBookStorage()
	storage.LoadSnapshot("ETH/USD", levels("10.300", "1.5"), nil, 0)

	require.NoError(t, storage.ApplyDelta("ETH/USD", SideBuy, d("10.3"), d("2")))

	snapshot, err := storage.TakeSnapshot("ETH/USD", 0)
	require.NoError(t, err)
	require.Len(t, snapshot.Bids, 1, "10.300 and 10.3 are the same level")
	assert.True(t, snapshot.Bids[0].Amount.Equal(d("2")))
}

func TestOrderBookStorage_DeltaWithoutSnapshot(t *testing.T) {
	storage := NewOrderBookStorage()

	err := storage.ApplyDelta("BTC/USD", SideBuy, d("1"), d("1"))
	assert.True(t, errors.Is(err, ErrOrderBookNotFound))
	assert.True(t, errors.Is(err, ErrStateViolation))

	_, err = storage.ApplyUpdateBatch("BTC/USD", nil, 1)
	assert.True(t, errors.Is(err, ErrStateViolation))
	assert.Equal(t, 0, storage.OrderBookCount(), "a delta must never create a book")
}

func TestOrderBookStorage_ApplyUpdateBatch(t *testing.T) {
	storage := NewOrderBookStorage()
	storage.LoadSnapshot("BTC/USD", levels("100", "1"), levels("101", "1"), 0)

	snapshot, err := storage.ApplyUpdateBatch("BTC/USD", []BookChange{
		{Side: SideBuy, Price: d("100.5"), Amount: d("2")},
		{Side: SideSell, Price: d("101"), Amount: d("0")},
		{Side: SideSell, Price: d("102"), Amount: d("3")},
	}, 1565815347265)
	require.NoError(t, err)

	assert.Equal(t, []string{"100.5", "100"}, prices(snapshot.Bids))
	assert.Equal(t, []string{"102"}, prices(snapshot.Asks))
	assert.Equal(t, int64(1565815347265), snapshot.Timestamp)
}

func TestOrderBookStorage_ApplyUpdateBatchRejectsBadSide(t *testing.T) {
	storage := NewOrderBookStorage()
	storage.LoadSnapshot("BTC/USD", levels("100", "1"), nil, 0)

	_, err := storage.ApplyUpdateBatch("BTC/USD", []BookChange{
		{Side: SideBuy, Price: d("99"), Amount: d("1")},
		{Side: Side("hold"), Price: d("98"), Amount: d("1")},
	}, 5)
	assert.Error(t, err)

	snapshot, err := storage.TakeSnapshot("BTC/USD", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"100"}, prices(snapshot.Bids), "a malformed batch must not be partially applied")
	assert.Zero(t, snapshot.Timestamp)
}

func TestOrderBook_TakeSnapshotLimit(t *testing.T) {
	storage := NewOrderBookStorage()
	storage.LoadSnapshot("BTC/USD",
		levels("100", "1", "99", "1", "98", "1"),
		levels("101", "1", "102", "1", "103", "1"),
		2,
	)

	limited, err := storage.TakeSnapshot("BTC/USD", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "99"}, prices(limited.Bids), "configured depth applies to the view")
	assert.Equal(t, []string{"101", "102"}, prices(limited.Asks))

	wider, err := storage.TakeSnapshot("BTC/USD", 3)
	require.NoError(t, err)
	assert.Len(t, wider.Bids, 3, "the full book is retained behind the depth limit")
}

func TestLimitDepth(t *testing.T) {
	depth := levels("1", "1", "2", "1")

	assert.Len(t, limitDepth(depth, 3), 2)
	assert.Len(t, limitDepth(depth, 1), 1)
	assert.Len(t, limitDepth(depth, 0), 2)
}
