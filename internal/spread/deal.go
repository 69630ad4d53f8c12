package spread

import "time"

// Deal is a candidate trade computed from one book snapshot. It is
// only valid for the tick that produced it and is recomputed every
// iteration.
type Deal struct {
	// Price is where this side's limit order would rest.
	Price float64
	// CounterPrice is the price the opposite leg would need for the
	// spread to close profitably.
	CounterPrice float64
	Quantity     float64
	ProfitRate   float64
}

// pendingOrder tracks the single order a side believes is outstanding
// at the exchange. OrderID is non-empty iff an order is believed live;
// the belief is reconciled against exchange fill state before being
// cleared.
type pendingOrder struct {
	OrderID  string
	Price    float64
	Quantity float64
	PlacedAt time.Time
}

func (p pendingOrder) Outstanding() bool {
	return p.OrderID != ""
}
