package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelRouter_ResolveBroadcast(t *testing.T) {
	router := NewChannelRouter()
	a := router.Register("matches:BTC-USD")
	b := router.Register("matches:BTC-USD")
	other := router.Register("matches:ETH-USD")

	assert.Equal(t, 2, router.Resolve("matches:BTC-USD", "value"))

	for _, f := range []*Future{a, b} {
		v, err := router.Wait(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}

	select {
	case <-other.Done():
		t.Fatal("a waiter on another hash must not be resolved")
	default:
	}
	assert.Equal(t, 0, router.Pending("matches:BTC-USD"), "resolution clears the waiters")
	assert.Equal(t, 1, router.Pending("matches:ETH-USD"))
}

func TestChannelRouter_NewCycleAfterResolve(t *testing.T) {
	router := NewChannelRouter()
	first := router.Register("ticker:BTC-USD")
	router.Resolve("ticker:BTC-USD", 1)

	second := router.Register("ticker:BTC-USD")
	router.Resolve("ticker:BTC-USD", 2)

	v, _ := first.Result()
	assert.Equal(t, 1, v)
	v, _ = second.Result()
	assert.Equal(t, 2, v)
}

func TestChannelRouter_RejectIsConnectionWide(t *testing.T) {
	router := NewChannelRouter()
	a := router.Register("orders:BTC-USD")
	b := router.Register("level2:ETH-USD")
	boom := errors.New("boom")

	assert.Equal(t, 2, router.Reject(boom))

	for _, f := range []*Future{a, b} {
		_, err := router.Wait(context.Background(), f)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 0, router.PendingTotal())
	assert.Equal(t, 0, router.Resolve("orders:BTC-USD", "late"), "nothing is left to resolve after a rejection")
}

func TestChannelRouter_RejectHash(t *testing.T) {
	router := NewChannelRouter()
	book := router.Register("level2:BTC-USD")
	ticker := router.Register("ticker:BTC-USD")

	assert.Equal(t, 1, router.RejectHash("level2:BTC-USD", ErrOrderBookNotFound))

	_, err := book.Result()
	assert.ErrorIs(t, err, ErrStateViolation)
	assert.Equal(t, 1, router.Pending("ticker:BTC-USD"))
	assert.NotNil(t, ticker)
}

func TestChannelRouter_WaitCancellationDeregisters(t *testing.T) {
	router := NewChannelRouter()
	f := router.Register("matches:BTC-USD")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := router.Wait(ctx, f)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, router.Pending("matches:BTC-USD"), "an abandoned waiter must not leak")
}

func TestFuture_SettlesOnce(t *testing.T) {
	f := newFuture("x")
	assert.True(t, f.settle(1, nil))
	assert.False(t, f.settle(2, errors.New("late")))

	v, err := f.Result()
	assert.Equal(t, 1, v)
	assert.NoError(t, err)
}
