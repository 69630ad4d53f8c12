package bybit

import (
	"strconv"

	"github.com/yanun0323/decimal"

	"main/internal/book"
)

type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type subscribeResponse struct {
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
	Op      string `json:"op"`
	ConnID  string `json:"conn_id"`
}

// DepthUpdate is one message of the orderbook.<depth>.<symbol> topic.
// The first message after (re)subscribing is a snapshot, every later
// one a delta against it.
type DepthUpdate struct {
	Topic     string    `json:"topic"`
	Type      string    `json:"type"`
	Timestamp int64     `json:"ts"`
	Data      DepthData `json:"data"`
}

// DepthData carries the price levels as [price, size] pairs.
type DepthData struct {
	Symbol   string              `json:"s"`
	Bids     [][]decimal.Decimal `json:"b"`
	Asks     [][]decimal.Decimal `json:"a"`
	UpdateID int64               `json:"u"`
	Sequence int64               `json:"seq"`
}

func (d DepthUpdate) IsSnapshot() bool {
	return d.Type == "snapshot"
}

// BidLevels converts the raw bid pairs, dropping malformed entries.
func (d DepthData) BidLevels() []book.Level {
	return toLevels(d.Bids)
}

// AskLevels converts the raw ask pairs, dropping malformed entries.
func (d DepthData) AskLevels() []book.Level {
	return toLevels(d.Asks)
}

func toLevels(pairs [][]decimal.Decimal) []book.Level {
	levels := make([]book.Level, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(pair[0].String(), 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(pair[1].String(), 64)
		if err != nil {
			continue
		}
		levels = append(levels, book.Level{Price: price, Size: size})
	}
	return levels
}
