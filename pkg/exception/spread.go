package exception

import "errors"

var (
	ErrSpreadNoDepth          = errors.New("spread: depth unavailable")
	ErrSpreadNoBalances       = errors.New("spread: balances unavailable")
	ErrSpreadNotProfitable    = errors.New("spread: profit rate below minimum")
	ErrSpreadSizeTooLow       = errors.New("spread: trade size below minimum notional")
	ErrSpreadNothingToSell    = errors.New("spread: no sellable quantity")
	ErrSpreadPositionConflict = errors.New("spread: position version conflict")
	ErrSpreadBotNotFound      = errors.New("spread: bot not found")
)
