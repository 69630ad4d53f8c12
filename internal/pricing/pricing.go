package pricing

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// Utility rounds prices and quantities to an instrument's declared
// precision. Precisions are tick sizes as reported by the exchange
// product endpoint, e.g. 0.01 means two decimals.
//
// Rounding toward exchange minimums always truncates (floor for
// quantities and down-prices, ceil for up-prices) so an order never
// violates a minimum by round-to-nearest.
type Utility struct {
	priceTick     decimal.Decimal
	priceDecimals int32
	qtyDecimals   int32
}

func New(pricePrecision, quantityPrecision float64) Utility {
	priceTick := decimal.NewFromFloat(pricePrecision)
	qtyTick := decimal.NewFromFloat(quantityPrecision)
	return Utility{
		priceTick:     priceTick,
		priceDecimals: -priceTick.Exponent(),
		qtyDecimals:   -qtyTick.Exponent(),
	}
}

// DetermineOrderPrice returns the price one tick inside the spread:
// one tick above the best bid for a buy, one tick below the best ask
// for a sell.
func (u Utility) DetermineOrderPrice(side enum.Side, bestPrice float64) float64 {
	best := decimal.NewFromFloat(bestPrice)
	if side == enum.SideSell {
		return best.Sub(u.priceTick).Round(u.priceDecimals).InexactFloat64()
	}
	return best.Add(u.priceTick).Round(u.priceDecimals).InexactFloat64()
}

// FormatOrderPrice renders a price with exactly the instrument's
// decimal count, as required by exchange order endpoints.
func (u Utility) FormatOrderPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(u.priceDecimals)
}

// QtyDown truncates a quantity to the quantity precision.
func (u Utility) QtyDown(qty float64) float64 {
	return decimal.NewFromFloat(qty).RoundFloor(u.qtyDecimals).InexactFloat64()
}

// PriceDown truncates a price to the price precision.
func (u Utility) PriceDown(price float64) float64 {
	return decimal.NewFromFloat(price).RoundFloor(u.priceDecimals).InexactFloat64()
}

// PriceUp rounds a price up to the price precision.
func (u Utility) PriceUp(price float64) float64 {
	return decimal.NewFromFloat(price).RoundCeil(u.priceDecimals).InexactFloat64()
}

// ProfitRate is the relative gain of selling at sellPrice after buying
// at buyPrice.
func ProfitRate(buyPrice, sellPrice float64) float64 {
	return sellPrice/buyPrice - 1
}

// IsProfitable reports whether rate clears the minimum. An exactly
// equal rate is not profitable.
func IsProfitable(rate, minRate float64) bool {
	return rate > minRate
}
