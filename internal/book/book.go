package book

import "sort"

// Level is one resting (price, size) entry of an order book side.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Depth is the published two-sided view of a book: bids descending by
// price, asks ascending.
type Depth struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// BestBid returns the highest bid.
func (d Depth) BestBid() (Level, bool) {
	if len(d.Bids) == 0 {
		return Level{}, false
	}
	return d.Bids[0], true
}

// BestAsk returns the lowest ask.
func (d Depth) BestAsk() (Level, bool) {
	if len(d.Asks) == 0 {
		return Level{}, false
	}
	return d.Asks[0], true
}

// SecondBid returns the second highest bid.
func (d Depth) SecondBid() (Level, bool) {
	if len(d.Bids) < 2 {
		return Level{}, false
	}
	return d.Bids[1], true
}

// SecondAsk returns the second lowest ask.
func (d Depth) SecondAsk() (Level, bool) {
	if len(d.Asks) < 2 {
		return Level{}, false
	}
	return d.Asks[1], true
}

// Book maintains one two-sided price-level order book from a
// snapshot+delta feed. It is owned by a single ingestion goroutine;
// readers only ever see the immutable Depth snapshots it publishes.
type Book struct {
	bids map[float64]float64
	asks map[float64]float64
}

func New() *Book {
	return &Book{
		bids: make(map[float64]float64),
		asks: make(map[float64]float64),
	}
}

// ApplySnapshot replaces both sides wholesale.
func (b *Book) ApplySnapshot(bids, asks []Level) {
	clear(b.bids)
	clear(b.asks)
	for _, lv := range bids {
		if lv.Size > 0 {
			b.bids[lv.Price] = lv.Size
		}
	}
	for _, lv := range asks {
		if lv.Size > 0 {
			b.asks[lv.Price] = lv.Size
		}
	}
}

// ApplyDelta upserts each (price, size) update into the matching side.
// A zero size removes the price level.
func (b *Book) ApplyDelta(bids, asks []Level) {
	applySide(b.bids, bids)
	applySide(b.asks, asks)
}

func applySide(side map[float64]float64, updates []Level) {
	for _, lv := range updates {
		if lv.Size == 0 {
			delete(side, lv.Price)
			continue
		}
		side[lv.Price] = lv.Size
	}
}

// Depth re-derives the ordered sequences for both sides. The returned
// slices are fresh copies safe to hand across goroutines.
func (b *Book) Depth() Depth {
	bids := collect(b.bids)
	asks := collect(b.asks)
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return Depth{Bids: bids, Asks: asks}
}

func collect(side map[float64]float64) []Level {
	levels := make([]Level, 0, len(side))
	for price, size := range side {
		levels = append(levels, Level{Price: price, Size: size})
	}
	return levels
}
