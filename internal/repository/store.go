package repository

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// casRetries bounds the optimistic-lock retry loop. The buy and sell
// workers of one bot are the only writers, so a conflict resolves
// within a retry or two.
const casRetries = 3

// Store persists bot configuration, the trading position and the
// transaction ledger. Position writes go through a version
// compare-and-swap so concurrent fills from the buy and sell workers
// never overwrite each other.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the bot and ledger tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&model.SpreadBot{}, &model.SpreadBotTx{})
}

// Bot reloads the bot row. Workers call this every iteration so
// configuration edits apply without restart.
func (s *Store) Bot(ctx context.Context, id uint64) (model.SpreadBot, error) {
	var bot model.SpreadBot
	if err := s.db.WithContext(ctx).First(&bot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bot, exception.ErrSpreadBotNotFound
		}
		return bot, errors.Wrap(err, "load bot")
	}
	return bot, nil
}

// ApplyBuyFill merges a confirmed buy fill into the position and
// appends the buy transaction in one database transaction. A buy
// realizes no price profit, only the fee cost.
func (s *Store) ApplyBuyFill(ctx context.Context, botID uint64, fillPrice, fillQuantity, fee float64) (model.SpreadBot, error) {
	return s.applyFill(ctx, botID, func(bot *model.SpreadBot) model.SpreadBotTx {
		bot.AveragePrice, bot.SellableQuantity = model.MergeBuyFill(
			bot.AveragePrice, bot.SellableQuantity, fillPrice, fillQuantity,
		)
		return model.SpreadBotTx{
			BotID:     botID,
			Side:      enum.SideBuy,
			Price:     fillPrice,
			Quantity:  fillQuantity,
			Fee:       fee,
			Profit:    -fee,
			Condition: enum.TxConditionMarket,
		}
	})
}

// ApplySellFill reduces the position by a confirmed sell fill and
// appends the sell transaction with its realized profit.
func (s *Store) ApplySellFill(ctx context.Context, botID uint64, fillPrice, fillQuantity, fee float64) (model.SpreadBot, error) {
	return s.applyFill(ctx, botID, func(bot *model.SpreadBot) model.SpreadBotTx {
		profit := (fillPrice-bot.AveragePrice)*fillQuantity - fee
		bot.AveragePrice, bot.SellableQuantity = model.ReduceSellFill(
			bot.AveragePrice, bot.SellableQuantity, fillQuantity,
		)
		return model.SpreadBotTx{
			BotID:     botID,
			Side:      enum.SideSell,
			Price:     fillPrice,
			Quantity:  fillQuantity,
			Fee:       fee,
			Profit:    profit,
			Condition: enum.TxConditionMarket,
		}
	})
}

func (s *Store) applyFill(ctx context.Context, botID uint64, mutate func(*model.SpreadBot) model.SpreadBotTx) (model.SpreadBot, error) {
	var result model.SpreadBot
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var bot model.SpreadBot
			if err := tx.First(&bot, botID).Error; err != nil {
				return errors.Wrap(err, "load bot for fill")
			}
			readVersion := bot.Version
			row := mutate(&bot)

			res := tx.Model(&model.SpreadBot{}).
				Where("id = ? AND version = ?", botID, readVersion).
				Updates(map[string]any{
					"average_price":     bot.AveragePrice,
					"sellable_quantity": bot.SellableQuantity,
					"version":           readVersion + 1,
				})
			if res.Error != nil {
				return errors.Wrap(res.Error, "update position")
			}
			if res.RowsAffected == 0 {
				return exception.ErrSpreadPositionConflict
			}
			if err := tx.Create(&row).Error; err != nil {
				return errors.Wrap(err, "append transaction")
			}
			bot.Version = readVersion + 1
			result = bot
			return nil
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, exception.ErrSpreadPositionConflict) {
			return result, err
		}
	}
	return result, lastErr
}

// OverridePosition writes the position fields directly, guarded by the
// version the caller read. Used by the balance-based correction pass.
func (s *Store) OverridePosition(ctx context.Context, botID, readVersion uint64, averagePrice, sellableQuantity float64) error {
	res := s.db.WithContext(ctx).Model(&model.SpreadBot{}).
		Where("id = ? AND version = ?", botID, readVersion).
		Updates(map[string]any{
			"average_price":     averagePrice,
			"sellable_quantity": sellableQuantity,
			"version":           readVersion + 1,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "override position")
	}
	if res.RowsAffected == 0 {
		return exception.ErrSpreadPositionConflict
	}
	return nil
}

// RecordTransaction appends a ledger row outside a fill merge.
func (s *Store) RecordTransaction(ctx context.Context, row model.SpreadBotTx) error {
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "append transaction")
	}
	return nil
}

// TouchLastOrder updates the last-order timestamp shown in the UI.
func (s *Store) TouchLastOrder(ctx context.Context, botID uint64, side enum.Side, at time.Time) error {
	column := "last_buy_order_at"
	if side == enum.SideSell {
		column = "last_sell_order_at"
	}
	err := s.db.WithContext(ctx).Model(&model.SpreadBot{}).
		Where("id = ?", botID).
		Update(column, at).Error
	if err != nil {
		return errors.Wrap(err, "touch last order")
	}
	return nil
}

// CorrectAveragePrice overwrites the cost basis manually. When the
// correction writes the basis down it realizes a loss, which is booked
// as an OD ledger row before the overwrite so reporting stays honest.
func (s *Store) CorrectAveragePrice(ctx context.Context, botID uint64, newAverage float64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bot model.SpreadBot
		if err := tx.First(&bot, botID).Error; err != nil {
			return errors.Wrap(err, "load bot for correction")
		}

		realized := (newAverage - bot.AveragePrice) * bot.SellableQuantity
		if realized < 0 {
			row := model.SpreadBotTx{
				BotID:     botID,
				Side:      enum.SideSell,
				Price:     newAverage,
				Quantity:  bot.SellableQuantity,
				Profit:    realized,
				Condition: enum.TxConditionOverride,
			}
			if err := tx.Create(&row).Error; err != nil {
				return errors.Wrap(err, "append correction transaction")
			}
		}

		res := tx.Model(&model.SpreadBot{}).
			Where("id = ? AND version = ?", botID, bot.Version).
			Updates(map[string]any{
				"average_price": newAverage,
				"version":       bot.Version + 1,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "overwrite average price")
		}
		if res.RowsAffected == 0 {
			return exception.ErrSpreadPositionConflict
		}
		return nil
	})
}

// UpdateBudget sets the quote budget.
func (s *Store) UpdateBudget(ctx context.Context, botID uint64, budget float64) error {
	err := s.db.WithContext(ctx).Model(&model.SpreadBot{}).
		Where("id = ?", botID).
		Update("budget", budget).Error
	if err != nil {
		return errors.Wrap(err, "update budget")
	}
	return nil
}

// SetEnabled toggles one side of the bot; workers pick the flag up on
// their next iteration.
func (s *Store) SetEnabled(ctx context.Context, botID uint64, side enum.Side, enabled bool) error {
	column := "buy_enabled"
	if side == enum.SideSell {
		column = "sell_enabled"
	}
	err := s.db.WithContext(ctx).Model(&model.SpreadBot{}).
		Where("id = ?", botID).
		Update(column, enabled).Error
	if err != nil {
		return errors.Wrap(err, "set enabled")
	}
	return nil
}

// ProfitSummary aggregates realized sell profit over the reporting
// windows shown in the bot overview.
type ProfitSummary struct {
	Today      float64
	Last24h    float64
	Last7Days  float64
	Last30Days float64
	Total      float64
}

func (s *Store) ProfitSummary(ctx context.Context, botID uint64, now time.Time) (ProfitSummary, error) {
	var summary ProfitSummary
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	windows := []struct {
		since time.Time
		dst   *float64
	}{
		{midnight, &summary.Today},
		{now.Add(-24 * time.Hour), &summary.Last24h},
		{now.AddDate(0, 0, -7), &summary.Last7Days},
		{now.AddDate(0, 0, -30), &summary.Last30Days},
		{time.Time{}, &summary.Total},
	}

	for _, w := range windows {
		q := s.db.WithContext(ctx).Model(&model.SpreadBotTx{}).
			Where("bot_id = ? AND side = ?", botID, enum.SideSell)
		if !w.since.IsZero() {
			q = q.Where("created_at >= ?", w.since)
		}
		if err := q.Select("COALESCE(SUM(profit), 0)").Scan(w.dst).Error; err != nil {
			return summary, errors.Wrap(err, "aggregate profit")
		}
	}
	return summary, nil
}
