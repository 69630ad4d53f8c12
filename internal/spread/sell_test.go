package spread

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/book"
	"main/internal/cache"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
)

func newTestSeller(t *testing.T, bot model.SpreadBot) (*Seller, *fakeStore, *fakeAPI, *cache.Cache) {
	t.Helper()
	store := &fakeStore{bot: bot}
	api := newFakeAPI()
	c := cache.New()
	s := NewSeller(testConfig(), store, api, c)
	require.NoError(t, s.setup(context.Background()))
	return s, store, api, c
}

func sellableBot() model.SpreadBot {
	return model.SpreadBot{
		ID:               1,
		Ticker:           "SOL/USDT",
		Exchange:         "Mexc",
		Budget:           100,
		SpreadRate:       0.01,
		MaxSize:          300,
		ProfitRate:       0.005,
		AveragePrice:     10,
		SellableQuantity: 10,
		SellEnabled:      true,
	}
}

func TestSellerPlacesOrderWhenProfitable(t *testing.T) {
	s, store, api, c := newTestSeller(t, sellableBot())
	seedDepth(c, s.cfg,
		[]book.Level{{Price: 10.18, Size: 5}},
		[]book.Level{{Price: 10.20, Size: 5}, {Price: 10.21, Size: 5}})
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 10}})

	stopped, err := s.iterate(context.Background())
	require.NoError(t, err)
	require.False(t, stopped)

	require.Len(t, api.placed, 1)
	assert.Equal(t, enum.SideSell, api.placed[0].Side)
	assert.Equal(t, "10.19", api.placed[0].Price)
	assert.InDelta(t, 10, api.placed[0].Quantity, 1e-9)
	assert.True(t, s.order.Outstanding())
	assert.Equal(t, []enum.Side{enum.SideSell}, store.touched)
}

func TestSellerAbstainsBelowProfitThreshold(t *testing.T) {
	s, _, api, c := newTestSeller(t, sellableBot())
	seedDepth(c, s.cfg,
		[]book.Level{{Price: 10.01, Size: 5}},
		[]book.Level{{Price: 10.03, Size: 5}})
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 10}})

	_, err := s.iterate(context.Background())
	require.NoError(t, err)

	assert.Empty(t, api.placed)
	assert.False(t, s.order.Outstanding())
}

func TestSellerFallsBackToPassiveExit(t *testing.T) {
	bot := sellableBot()
	bot.ProfitRate = 0.0195
	s, _, api, c := newTestSeller(t, bot)
	// undercutting by one tick gives up just too much, the raw ask holds
	seedDepth(c, s.cfg,
		[]book.Level{{Price: 10.18, Size: 5}},
		[]book.Level{{Price: 10.20, Size: 5}})
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 10}})

	_, err := s.iterate(context.Background())
	require.NoError(t, err)

	require.Len(t, api.placed, 1)
	assert.Equal(t, "10.20", api.placed[0].Price)
}

func TestSellerSkipsDustPosition(t *testing.T) {
	bot := sellableBot()
	bot.SellableQuantity = 0.5
	s, _, api, c := newTestSeller(t, bot)
	seedDepth(c, s.cfg,
		[]book.Level{{Price: 10.18, Size: 5}},
		[]book.Level{{Price: 10.20, Size: 5}})
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 0.5}})

	_, err := s.iterate(context.Background())
	require.NoError(t, err)

	assert.Empty(t, api.placed)
}

func TestSellerDoesNothingWhenFlat(t *testing.T) {
	bot := sellableBot()
	bot.AveragePrice = 0
	bot.SellableQuantity = 0
	s, _, api, c := newTestSeller(t, bot)
	seedDepth(c, s.cfg,
		[]book.Level{{Price: 10.18, Size: 5}},
		[]book.Level{{Price: 10.20, Size: 5}})
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 0}})

	_, err := s.iterate(context.Background())
	require.NoError(t, err)

	assert.Empty(t, api.placed)
}

func TestSellerMergesFillAndReducesPosition(t *testing.T) {
	s, store, api, c := newTestSeller(t, sellableBot())
	seedDepth(c, s.cfg,
		[]book.Level{{Price: 10.18, Size: 5}},
		[]book.Level{{Price: 10.20, Size: 5}, {Price: 10.21, Size: 5}})
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 10}})

	s.order = pendingOrder{OrderID: "order-8", Price: 10.20, Quantity: 10, PlacedAt: time.Now()}
	s.deal = &Deal{Price: 10.20, Quantity: 10}
	api.statuses["order-8"] = exchange.OrderStatus{FilledPrice: 10.20, FilledQuantity: 10}

	_, err := s.iterate(context.Background())
	require.NoError(t, err)

	require.Len(t, store.fills, 1)
	assert.Equal(t, enum.SideSell, store.fills[0].Side)
	assert.InDelta(t, 10.20, store.fills[0].Price, 1e-9)
	assert.InDelta(t, 10, store.fills[0].Quantity, 1e-9)

	// fully exited: quantity and average price both reset
	assert.Zero(t, s.bot.SellableQuantity)
	assert.Zero(t, s.bot.AveragePrice)
	assert.False(t, s.order.Outstanding())
}

func TestSellerQuantityBand(t *testing.T) {
	tests := []struct {
		name     string
		quantity float64
		cancel   bool
	}{
		{"shrunk past lower band", 9.4, true},
		{"within lower band", 9.6, false},
		{"grown past upper band", 12.1, true},
		{"within upper band", 11.9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, api, c := newTestSeller(t, sellableBot())
			seedDepth(c, s.cfg,
				[]book.Level{{Price: 10.18, Size: 5}},
				[]book.Level{{Price: 10.20, Size: 5}, {Price: 10.21, Size: 5}})
			s.order = pendingOrder{OrderID: "order-6", Price: 10.20, Quantity: 10, PlacedAt: time.Now()}
			s.deal = &Deal{Price: 10.20, Quantity: 10}

			s.validateRestingOrder(context.Background(), &Deal{Price: 10.20, Quantity: tt.quantity})

			if tt.cancel {
				assert.Equal(t, []string{"order-6"}, api.cancelled)
				assert.False(t, s.order.Outstanding())
			} else {
				assert.Empty(t, api.cancelled)
				assert.True(t, s.order.Outstanding())
			}
		})
	}
}

func TestSellerCancelsWhenUndercut(t *testing.T) {
	s, _, api, c := newTestSeller(t, sellableBot())
	// someone now offers below the resting order
	seedDepth(c, s.cfg,
		[]book.Level{{Price: 10.15, Size: 5}},
		[]book.Level{{Price: 10.18, Size: 5}, {Price: 10.20, Size: 5}})
	s.order = pendingOrder{OrderID: "order-6", Price: 10.20, Quantity: 10, PlacedAt: time.Now()}
	s.deal = &Deal{Price: 10.20, Quantity: 10}

	s.validateRestingOrder(context.Background(), &Deal{Price: 10.20, Quantity: 10})

	assert.Equal(t, []string{"order-6"}, api.cancelled)
	assert.False(t, s.order.Outstanding())
}

func TestSellerStopCancelsOpenOrders(t *testing.T) {
	bot := sellableBot()
	bot.SellEnabled = false
	s, _, api, _ := newTestSeller(t, bot)
	s.order = pendingOrder{OrderID: "order-1", Price: 10.20, Quantity: 10, PlacedAt: time.Now()}
	s.deal = &Deal{Price: 10.20, Quantity: 10}

	stopped, err := s.iterate(context.Background())
	require.NoError(t, err)
	assert.True(t, stopped)

	assert.Equal(t, []string{"order-1"}, api.cancelled)
	assert.Equal(t, 1, api.cancelledAll)
	assert.Equal(t, 1, s.pending.Len())
}

func TestSellerCorrectsUnrecordedBuy(t *testing.T) {
	s, store, _, c := newTestSeller(t, sellableBot())
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 11}})
	require.NoError(t, s.refresh(context.Background()))

	s.correctUnrecordedBuys(context.Background())

	require.Len(t, store.overrides, 1)
	assert.InDelta(t, 10, store.overrides[0].AveragePrice, 1e-9)
	assert.InDelta(t, 11, store.overrides[0].SellableQuantity, 1e-9)
	assert.InDelta(t, 11, s.bot.SellableQuantity, 1e-9)
	assert.InDelta(t, 10, s.bot.AveragePrice, 1e-9)
}

func TestSellerClampsWhenExchangeHoldsLess(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		s, store, _, c := newTestSeller(t, sellableBot())
		seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 4}})
		require.NoError(t, s.refresh(context.Background()))

		s.correctUnrecordedBuys(context.Background())

		require.Len(t, store.overrides, 1)
		assert.InDelta(t, 10, store.overrides[0].AveragePrice, 1e-9)
		assert.InDelta(t, 4, store.overrides[0].SellableQuantity, 1e-9)
	})

	t.Run("empty", func(t *testing.T) {
		s, store, _, c := newTestSeller(t, sellableBot())
		seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 0}})
		require.NoError(t, s.refresh(context.Background()))

		s.correctUnrecordedBuys(context.Background())

		require.Len(t, store.overrides, 1)
		assert.Zero(t, store.overrides[0].AveragePrice)
		assert.Zero(t, store.overrides[0].SellableQuantity)
	})
}

func TestSellerIgnoresDustDifference(t *testing.T) {
	s, store, _, c := newTestSeller(t, sellableBot())
	// 0.1 extra at an average of 10 is one quote unit, below the floor
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 10.1}})
	require.NoError(t, s.refresh(context.Background()))

	s.correctUnrecordedBuys(context.Background())

	assert.Empty(t, store.overrides)
}

func TestSellerCorrectionHonorsCadence(t *testing.T) {
	s, store, _, c := newTestSeller(t, sellableBot())
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 10}})
	require.NoError(t, s.refresh(context.Background()))

	base := time.Now()
	s.now = func() time.Time { return base }
	s.correctUnrecordedBuys(context.Background())
	assert.Empty(t, store.overrides)

	// a large discrepancy appears, still inside the cadence window
	seedBalances(c, s.cfg, exchange.Balances{"SOL": {Total: 20}})
	s.now = func() time.Time { return base.Add(10 * time.Second) }
	s.correctUnrecordedBuys(context.Background())
	assert.Empty(t, store.overrides)

	s.now = func() time.Time { return base.Add(16 * time.Second) }
	s.correctUnrecordedBuys(context.Background())
	require.Len(t, store.overrides, 1)
	assert.InDelta(t, 20, store.overrides[0].SellableQuantity, 1e-9)
}
