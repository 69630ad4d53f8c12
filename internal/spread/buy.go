package spread

import (
	"context"
	"fmt"

	"github.com/yanun0323/logs"

	"main/internal/cache"
	"main/internal/exchange"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/pricing"
)

// Buyer is the buy-side decision loop of one bot. It owns the single
// outstanding buy order and merges confirmed buy fills into the shared
// position.
//
// States: stopped -> idle (no outstanding order) <-> order placed ->
// fill confirmed -> idle. The stop flag is checked once per iteration.
type Buyer struct {
	*worker
}

func NewBuyer(cfg Config, store Store, api exchange.API, c *cache.Cache) *Buyer {
	return &Buyer{worker: newWorker(cfg, enum.SideBuy, store, api, c)}
}

// Run drives the loop until the bot is disabled or the context ends.
// Business failures never exit the loop; they log, pause and continue.
func (b *Buyer) Run(ctx context.Context) error {
	logs.Infof("bot %d buy: starting", b.cfg.BotID)
	if err := b.setup(ctx); err != nil {
		return err
	}
	sleep(ctx, b.cfg.SettleDelay)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stopped, err := b.iterate(ctx)
		if stopped {
			logs.Warnf("bot %d buy: stopped, closing job", b.cfg.BotID)
			return nil
		}
		if err != nil {
			logs.Errorf("bot %d buy: iteration failed: %+v", b.cfg.BotID, err)
			obs.IterationFailures.WithLabelValues(string(enum.SideBuy)).Inc()
			sleep(ctx, failureDelay)
			continue
		}
		sleep(ctx, b.cfg.Interval)
	}
}

func (b *Buyer) iterate(ctx context.Context) (stopped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()

	if err := b.refresh(ctx); err != nil {
		return false, err
	}
	if !b.bot.BuyEnabled {
		b.checkOrderStatus(ctx)
		b.cancelOrder(ctx, true)
		return true, nil
	}

	b.resolvePreviousDeals(ctx)

	deal := b.checkDeal()

	// deal gone but an order rests: confirm fill state, then cancel
	if deal == nil && b.order.Outstanding() {
		b.checkOrderStatus(ctx)
		b.cancelOrder(ctx, true)
	}

	// deal and no order: enter
	if deal != nil && !b.order.Outstanding() {
		b.executeDeal(ctx, deal)
	}

	// deal and order: confirm fill state
	if deal != nil && b.order.Outstanding() {
		b.checkOrderStatus(ctx)
	}

	// still resting: is the order itself still valid for the new deal?
	if deal != nil && b.order.Outstanding() {
		b.validateRestingOrder(ctx, deal)
	}
	return false, nil
}

// checkDeal computes the candidate buy from the cached book. The best
// bid anchors the entry: one tick better when no order rests (to take
// the front), unchanged when one does. A nil return means abstain.
func (b *Buyer) checkDeal() *Deal {
	depth, err := b.depth()
	if err != nil {
		logs.Errorf("bot %d buy: unable to reach cached depth", b.cfg.BotID)
		return nil
	}
	balances, err := b.balances()
	if err != nil {
		logs.Errorf("bot %d buy: unable to reach cached balances", b.cfg.BotID)
		return nil
	}

	bestBid, okBid := depth.BestBid()
	bestAsk, okAsk := depth.BestAsk()
	if !okBid || !okAsk {
		logs.Errorf("bot %d buy: depth has an empty side", b.cfg.BotID)
		return nil
	}

	quote := balances[b.bot.QuoteAsset()]
	logs.Debugf("bot %d buy: total %s %v, available %v",
		b.cfg.BotID, b.bot.QuoteAsset(), quote.Total, quote.Available)

	buyPrice := bestBid.Price
	if !b.order.Outstanding() {
		buyPrice = b.util.DetermineOrderPrice(enum.SideBuy, bestBid.Price)
	}
	sellPrice := b.util.DetermineOrderPrice(enum.SideSell, bestAsk.Price)

	rate := pricing.ProfitRate(buyPrice, sellPrice)
	if !pricing.IsProfitable(rate, b.bot.SpreadRate) {
		// aggressive entry too thin; retry resting at the raw bid
		buyPrice = bestBid.Price
		rate = pricing.ProfitRate(buyPrice, sellPrice)
		if pricing.IsProfitable(rate, b.bot.SpreadRate) {
			logs.Infof("bot %d buy: entering passively at bid %v", b.cfg.BotID, buyPrice)
		}
	}
	if !pricing.IsProfitable(rate, b.bot.SpreadRate) {
		logs.Debugf("bot %d buy: profit rate not enough: %v", b.cfg.BotID, rate)
		return nil
	}

	tradeSize := min(b.bot.AvailableBudget(), b.bot.MaxSize)
	if tradeSize < minTradeNotional {
		logs.Warnf("bot %d buy: trade size too low: %v", b.cfg.BotID, tradeSize)
		return nil
	}

	return &Deal{
		Price:        buyPrice,
		CounterPrice: sellPrice,
		Quantity:     tradeSize / buyPrice,
		ProfitRate:   rate,
	}
}

// executeDeal places the limit buy. A rejection is not an error: the
// next iteration retries with fresh book state.
func (b *Buyer) executeDeal(ctx context.Context, deal *Deal) {
	price := b.util.FormatOrderPrice(deal.Price)
	quantity := b.util.QtyDown(deal.Quantity)

	orderID, raw, err := b.api.CreateLimitOrder(ctx, enum.SideBuy, price, quantity)
	if err != nil || orderID == "" {
		logs.Errorf("bot %d buy: order failed: %v %s", b.cfg.BotID, err, raw)
		return
	}

	b.order = pendingOrder{OrderID: orderID, Price: deal.Price, Quantity: quantity, PlacedAt: b.now()}
	b.deal = deal
	obs.OrdersPlaced.WithLabelValues(string(enum.SideBuy)).Inc()
	logs.Infof("bot %d buy: order placed at %s qty %v", b.cfg.BotID, price, quantity)
	b.touchLastOrder(ctx)
}

// validateRestingOrder cancels the resting buy when the fresh deal has
// drifted away from it: quantity outside the -5%/+20% band, the book
// moved against it, the front was taken, or it now rests needlessly
// deep behind the second bid.
func (b *Buyer) validateRestingOrder(ctx context.Context, newDeal *Deal) {
	if newDeal.Quantity < b.order.Quantity*qtyLowerBand ||
		newDeal.Quantity > b.order.Quantity*qtyUpperBand {
		logs.Infof("bot %d buy: quantity changed, cancelling order", b.cfg.BotID)
		b.cancelOrder(ctx, true)
		b.deal = nil
		return
	}

	depth, err := b.depth()
	if err != nil {
		return
	}
	bestBid, ok := depth.BestBid()
	if !ok {
		return
	}

	if bestBid.Price < b.order.Price {
		logs.Warnf("bot %d buy: order book may be outdated, exchange %s ticker %s",
			b.cfg.BotID, b.cfg.Exchange, b.cfg.Ticker)
		return
	}

	if bestBid.Price != b.order.Price {
		logs.Infof("bot %d buy: order is not the best (current %v, order %v), cancelling",
			b.cfg.BotID, bestBid.Price, b.order.Price)
		b.cancelOrder(ctx, true)
		b.deal = nil
		return
	}

	secondBid, ok := depth.SecondBid()
	if !ok {
		return
	}
	behind := b.util.DetermineOrderPrice(enum.SideBuy, secondBid.Price)
	if bestBid.Price != behind {
		logs.Infof("bot %d buy: order is best but far from the level behind, cancelling", b.cfg.BotID)
		b.cancelOrder(ctx, true)
		b.deal = nil
	}
}
