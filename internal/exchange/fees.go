package exchange

import "main/pkg/exception"

// FeeSchedule maps exchange name to taker fee rate. Injected from
// configuration; DefaultFees carries the known venue rates.
type FeeSchedule map[string]float64

func DefaultFees() FeeSchedule {
	return FeeSchedule{
		"Mexc":    0.001,
		"Bitmart": 0.0025,
		"Kucoin":  0.001,
		"BingX":   0.001,
		"Bybit":   0.001,
		"Bitget":  0.001,
		"XT":      0.002,
	}
}

// Rate returns the fee rate for an exchange.
func (f FeeSchedule) Rate(exchangeName string) (float64, error) {
	rate, ok := f[exchangeName]
	if !ok {
		return 0, exception.ErrOrderMissingFeeRate
	}
	return rate, nil
}
