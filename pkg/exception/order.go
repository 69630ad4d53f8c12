package exception

import "errors"

var (
	ErrOrderRejected         = errors.New("order: exchange rejected request")
	ErrOrderEmptyResponseID  = errors.New("order: empty response order id")
	ErrOrderUnknownExchange  = errors.New("order: unknown exchange")
	ErrOrderDecodeResponse   = errors.New("order: decode response body")
	ErrOrderResponseCode     = errors.New("order: response code is not zero")
	ErrOrderMissingFeeRate   = errors.New("order: no fee rate for exchange")
	ErrOrderStatusIncomplete = errors.New("order: status response incomplete")
)
