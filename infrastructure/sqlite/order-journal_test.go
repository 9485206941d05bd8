package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/marketsync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openJournal(t *testing.T) *OrderJournal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "journal.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func order(id string, seq int64, filled string) domain.Order {
	return domain.Order{
		ID:       id,
		Symbol:   "BTC/USD",
		Amount:   domain.NullDecimal(decimal.RequireFromString("1")),
		Filled:   domain.NullDecimal(decimal.RequireFromString(filled)),
		Status:   domain.OrderStatusOpen,
		Sequence: seq,
	}
}

func TestOrderJournal_SaveAndLoad(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Save(ctx, order("o1", 10, "0")))
	require.NoError(t, j.Save(ctx, order("o1", 12, "0.5")))
	require.NoError(t, j.Save(ctx, order("o2", 3, "0")))

	orders, err := j.Load(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	byID := map[string]domain.Order{}
	for _, o := range orders {
		byID[o.ID] = o
	}
	assert.Equal(t, int64(12), byID["o1"].Sequence)
	assert.True(t, byID["o1"].Filled.Decimal.Equal(decimal.RequireFromString("0.5")))
	assert.False(t, byID["o1"].Price.Valid)
}

func TestOrderJournal_OlderSequenceIsIgnored(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	j.OrderUpdated(order("o1", 12, "0.5"))
	j.OrderUpdated(order("o1", 11, "0.2"))
	j.Flush()

	orders, err := j.Load(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(12), orders[0].Sequence)
}

func TestOrderJournal_RestoreSuppressesRedelivery(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	j.OrderUpdated(order("o1", 12, "0.5"))
	j.Flush()

	orders, err := j.Load(ctx)
	require.NoError(t, err)

	reconciler := domain.NewOrderReconciler(domain.NewKeyedCache[domain.Order](10), zap.NewNop(), j)
	reconciler.Restore(orders)

	_, applied, err := reconciler.Apply(domain.OrderEvent{
		Kind:     domain.OrderEventStatus,
		Symbol:   "BTC/USD",
		Sequence: 12,
		OrderID:  "o1",
		View:     domain.Order{ID: "o1", Status: domain.OrderStatusCanceled},
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestOrderJournal_SlowDiskDoesNotBlockTheSink(t *testing.T) {
	j := openJournal(t)

	// a batch that is still being written
	j.writeMu.Lock()
	queued := make(chan struct{})
	go func() {
		j.OrderUpdated(order("o1", 1, "0"))
		j.OrderUpdated(order("o1", 2, "0.25"))
		close(queued)
	}()

	select {
	case <-queued:
	case <-time.After(time.Second):
		t.Fatal("OrderUpdated waited for the disk")
	}
	j.writeMu.Unlock()

	j.Flush()
	orders, err := j.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].Sequence)
}

func TestOrderJournal_CloseWritesQueuedUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	j.OrderUpdated(order("o1", 5, "0.5"))
	require.NoError(t, j.Close())

	reopened, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	orders, err := reopened.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(5), orders[0].Sequence)
}
