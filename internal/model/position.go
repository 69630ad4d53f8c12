package model

// MergeBuyFill folds a confirmed buy fill into a position and returns
// the new weighted average price and sellable quantity.
func MergeBuyFill(averagePrice, sellableQuantity, fillPrice, fillQuantity float64) (float64, float64) {
	if fillQuantity <= 0 {
		return averagePrice, sellableQuantity
	}
	newQuantity := sellableQuantity + fillQuantity
	newAverage := (averagePrice*sellableQuantity + fillPrice*fillQuantity) / newQuantity
	return newAverage, newQuantity
}

// ReduceSellFill removes a confirmed sell fill from a position. The
// quantity floors at zero, and a fully closed position resets the
// average price to zero.
func ReduceSellFill(averagePrice, sellableQuantity, fillQuantity float64) (float64, float64) {
	newQuantity := sellableQuantity - fillQuantity
	if newQuantity <= 0 {
		return 0, 0
	}
	return averagePrice, newQuantity
}
