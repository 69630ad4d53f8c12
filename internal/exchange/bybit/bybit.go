// Package bybit implements the Bybit v5 spot surface: the public
// order book stream and the signed REST trading endpoints.
package bybit

import "strings"

const (
	publicSpotWsURL = "wss://stream.bybit.com/v5/public/spot"
	restBaseURL     = "https://api.bybit.com"

	categorySpot = "spot"
)

// Symbol converts a "SOL/USDT" style ticker to the venue symbol
// "SOLUSDT".
func Symbol(ticker string) string {
	return strings.ToUpper(strings.ReplaceAll(ticker, "/", ""))
}
