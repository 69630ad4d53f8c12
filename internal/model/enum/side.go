package enum

// Side buy, sell. Stored as-is in the transaction ledger.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) IsAvailable() bool {
	return s == SideBuy || s == SideSell
}
