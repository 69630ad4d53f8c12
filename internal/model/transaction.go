package model

import (
	"time"

	"main/internal/model/enum"
)

// SpreadBotTx is one immutable ledger row. Rows are appended on
// confirmed fills (condition M) and manual corrections (condition OD),
// never updated or deleted.
type SpreadBotTx struct {
	ID    uint64 `gorm:"primaryKey" json:"id"`
	BotID uint64 `gorm:"index" json:"bot_id"`

	Side      enum.Side        `gorm:"size:10;default:buy" json:"side"`
	Price     float64          `json:"price"`
	Quantity  float64          `json:"quantity"`
	Fee       float64          `json:"fee"`
	Profit    float64          `json:"profit"`
	Condition enum.TxCondition `gorm:"size:255;default:M" json:"condition"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (SpreadBotTx) TableName() string {
	return "spread_bot_txs"
}
