package model

import (
	"strings"
	"time"
)

// SpreadBot is the persisted configuration and position of one spread
// trading bot. The buy and sell workers of the same bot share this row;
// AveragePrice/SellableQuantity mutate only through the repository's
// versioned position updates.
type SpreadBot struct {
	ID       uint64 `gorm:"primaryKey"`
	Ticker   string `gorm:"size:255"` // e.g. "SOL/USDT"
	Exchange string `gorm:"size:255;index"`
	Point    int    `gorm:"default:0"`

	Budget     float64 `gorm:"default:100"`
	SpreadRate float64 `gorm:"default:0.01"`
	MaxSize    float64 `gorm:"default:300"`
	ProfitRate float64 `gorm:"default:0.005"`

	AveragePrice     float64 `gorm:"default:0"`
	SellableQuantity float64 `gorm:"default:0"`

	TakeProfitRate           *float64
	AverageCorrectionMinutes int     `gorm:"default:80"`
	AverageCorrectionRate    float64 `gorm:"default:0.02"`

	BuyEnabled  bool `gorm:"default:false"`
	SellEnabled bool `gorm:"default:false"`

	LastBuyOrderAt  *time.Time
	LastSellOrderAt *time.Time

	// Version guards concurrent position writes from the buy and sell
	// workers. Every position update must carry the version it read.
	Version uint64 `gorm:"default:0"`

	CreatedAt time.Time `gorm:"index"`
}

func (SpreadBot) TableName() string {
	return "spread_bots"
}

// Asset returns the base asset of the ticker, e.g. "SOL" for "SOL/USDT".
func (b SpreadBot) Asset() string {
	asset, _, _ := strings.Cut(b.Ticker, "/")
	return asset
}

// QuoteAsset returns the quote asset of the ticker, e.g. "USDT".
func (b SpreadBot) QuoteAsset() string {
	_, quote, ok := strings.Cut(b.Ticker, "/")
	if !ok {
		return "USDT"
	}
	return quote
}

// HeldNotional is the quote value currently locked in the position.
func (b SpreadBot) HeldNotional() float64 {
	return b.AveragePrice * b.SellableQuantity
}

// AvailableBudget is the quote budget remaining for new buys.
func (b SpreadBot) AvailableBudget() float64 {
	return b.Budget - b.HeldNotional()
}
