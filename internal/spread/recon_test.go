package spread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/exchange"
	"main/internal/model/enum"
)

func TestResolvePreviousDealsDropsUnfilled(t *testing.T) {
	b, store, api, _ := newTestBuyer(t, buyableBot())
	b.pending.Add("order-1", Deal{Price: 10.00, Quantity: 10})

	b.resolvePreviousDeals(context.Background())

	assert.Zero(t, b.pending.Len())
	assert.Empty(t, store.fills)
	assert.Equal(t, 1, api.statusCalls)
}

func TestResolvePreviousDealsMergesLateFill(t *testing.T) {
	b, store, api, _ := newTestBuyer(t, buyableBot())
	b.bot = store.bot
	b.pending.Add("order-1", Deal{Price: 10.00, Quantity: 10})
	api.statuses["order-1"] = exchange.OrderStatus{FilledPrice: 10.00, FilledQuantity: 10}

	b.resolvePreviousDeals(context.Background())

	assert.Zero(t, b.pending.Len())
	require.Len(t, store.fills, 1)
	assert.Equal(t, enum.SideBuy, store.fills[0].Side)
	assert.InDelta(t, 10.00, store.fills[0].Price, 1e-9)
	assert.InDelta(t, 10, store.fills[0].Quantity, 1e-9)
	assert.InDelta(t, 10.00, b.bot.AveragePrice, 1e-9)
	assert.InDelta(t, 10, b.bot.SellableQuantity, 1e-9)
}

func TestResolvePreviousDealsRetainsEntryOnError(t *testing.T) {
	b, store, api, _ := newTestBuyer(t, buyableBot())
	b.pending.Add("order-1", Deal{Price: 10.00, Quantity: 10})
	api.statusErr = errors.New("rate limited")

	b.resolvePreviousDeals(context.Background())

	// resolution is retried on a later pass, never silently discarded
	assert.Equal(t, 1, b.pending.Len())
	assert.Empty(t, store.fills)
}

func TestResolvePreviousDealsHonorsCadence(t *testing.T) {
	b, _, api, _ := newTestBuyer(t, buyableBot())
	b.pending.Add("order-1", Deal{Price: 10.00, Quantity: 10})

	base := time.Now()
	b.now = func() time.Time { return base }
	b.resolvePreviousDeals(context.Background())
	assert.Equal(t, 1, api.statusCalls)

	b.pending.Add("order-2", Deal{Price: 10.00, Quantity: 10})
	b.now = func() time.Time { return base.Add(2 * time.Second) }
	b.resolvePreviousDeals(context.Background())
	assert.Equal(t, 1, api.statusCalls)

	b.now = func() time.Time { return base.Add(6 * time.Second) }
	b.resolvePreviousDeals(context.Background())
	assert.Equal(t, 2, api.statusCalls)
}

func TestResolvePreviousDealsSkipsWhenEmpty(t *testing.T) {
	b, _, api, _ := newTestBuyer(t, buyableBot())
	b.resolvePreviousDeals(context.Background())
	assert.Zero(t, api.statusCalls)
}
