package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func TestMergeBuyFillWeightedAverage(t *testing.T) {
	avg, qty := MergeBuyFill(100, 2, 110, 1)

	assert.InDelta(t, 106.67, avg, 0.01)
	assert.InDelta(t, 3, qty, 1e-9)
}

func TestMergeBuyFillFromFlat(t *testing.T) {
	avg, qty := MergeBuyFill(0, 0, 42.5, 4)

	assert.InDelta(t, 42.5, avg, 1e-9)
	assert.InDelta(t, 4, qty, 1e-9)
}

func TestReduceSellFillZeroesAverage(t *testing.T) {
	avg, qty := ReduceSellFill(123.45, 2, 2)
	assert.Zero(t, avg)
	assert.Zero(t, qty)

	// over-fill still floors at zero
	avg, qty = ReduceSellFill(123.45, 2, 3)
	assert.Zero(t, avg)
	assert.Zero(t, qty)
}

func TestReduceSellFillPartial(t *testing.T) {
	avg, qty := ReduceSellFill(100, 5, 2)

	assert.InDelta(t, 100, avg, 1e-9)
	assert.InDelta(t, 3, qty, 1e-9)
}

func TestBotDerivedFields(t *testing.T) {
	bot := SpreadBot{
		Ticker:           "SOL/USDT",
		Budget:           500,
		AveragePrice:     100,
		SellableQuantity: 2,
	}

	assert.Equal(t, "SOL", bot.Asset())
	assert.Equal(t, "USDT", bot.QuoteAsset())
	assert.InDelta(t, 200, bot.HeldNotional(), 1e-9)
	assert.InDelta(t, 300, bot.AvailableBudget(), 1e-9)
}

func TestTransactionRoundTrip(t *testing.T) {
	orig := SpreadBotTx{
		ID:        7,
		BotID:     3,
		Side:      enum.SideSell,
		Price:     10.04,
		Quantity:  1.5,
		Fee:       0.015,
		Profit:    0.045,
		Condition: enum.TxConditionOverride,
		CreatedAt: time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC),
	}

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var decoded SpreadBotTx
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, orig, decoded)
	assert.True(t, decoded.Side.IsAvailable())
	assert.True(t, decoded.Condition.IsAvailable())
}
