package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/cache"
	"main/internal/exchange"
)

type fakeBalanceSource struct {
	balances exchange.Balances
	err      error
	calls    int
}

func (f *fakeBalanceSource) GetAccountBalance(context.Context) (exchange.Balances, error) {
	f.calls++
	return f.balances, f.err
}

func TestBalanceWorkerPublishes(t *testing.T) {
	c := cache.New()
	source := &fakeBalanceSource{balances: exchange.Balances{
		"USDT": {Available: 100, Total: 100},
	}}
	w := NewBalanceWorker("Bybit", "main", c, source)

	require.NoError(t, w.poll(context.Background()))

	balances, ok := c.Balances("Bybit", "main")
	require.True(t, ok)
	assert.InDelta(t, 100, balances["USDT"].Total, 1e-9)
	assert.Equal(t, 1, source.calls)
}

func TestBalanceWorkerKeepsStaleValueOnError(t *testing.T) {
	c := cache.New()
	source := &fakeBalanceSource{balances: exchange.Balances{"USDT": {Total: 100}}}
	w := NewBalanceWorker("Bybit", "main", c, source)
	require.NoError(t, w.poll(context.Background()))

	source.err = errors.New("temporarily unavailable")
	assert.Error(t, w.poll(context.Background()))

	balances, ok := c.Balances("Bybit", "main")
	require.True(t, ok)
	assert.InDelta(t, 100, balances["USDT"].Total, 1e-9)
}
