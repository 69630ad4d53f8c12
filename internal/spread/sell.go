package spread

import (
	"context"
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/cache"
	"main/internal/exchange"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/pricing"
)

// correctionCheckInterval spaces out the balance-based position
// correction pass.
const correctionCheckInterval = 15 * time.Second

// Seller is the sell-side decision loop of one bot. It mirrors the
// buyer with the best ask as anchor, sizes orders to the full held
// position and measures profitability against the position's average
// price. It also repairs the position when the exchange-reported
// balance disagrees with the tracked sellable quantity.
type Seller struct {
	*worker
	lastCorrection time.Time
}

func NewSeller(cfg Config, store Store, api exchange.API, c *cache.Cache) *Seller {
	return &Seller{worker: newWorker(cfg, enum.SideSell, store, api, c)}
}

// Run drives the loop until the bot is disabled or the context ends.
func (s *Seller) Run(ctx context.Context) error {
	logs.Infof("bot %d sell: starting", s.cfg.BotID)
	if err := s.setup(ctx); err != nil {
		return err
	}
	sleep(ctx, s.cfg.SettleDelay)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stopped, err := s.iterate(ctx)
		if stopped {
			logs.Warnf("bot %d sell: stopped, closing job", s.cfg.BotID)
			return nil
		}
		if err != nil {
			logs.Errorf("bot %d sell: iteration failed: %+v", s.cfg.BotID, err)
			obs.IterationFailures.WithLabelValues(string(enum.SideSell)).Inc()
			sleep(ctx, failureDelay)
			continue
		}
		sleep(ctx, s.cfg.Interval)
	}
}

func (s *Seller) iterate(ctx context.Context) (stopped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()

	if err := s.refresh(ctx); err != nil {
		return false, err
	}
	if !s.bot.SellEnabled {
		s.checkOrderStatus(ctx)
		s.cancelOrder(ctx, true)
		if err := s.api.CancelOpenOrders(ctx); err != nil {
			logs.Warnf("bot %d sell: cancel open orders: %v", s.cfg.BotID, err)
		}
		return true, nil
	}

	s.resolvePreviousDeals(ctx)
	s.correctUnrecordedBuys(ctx)

	deal := s.checkDeal()

	if deal == nil && s.order.Outstanding() {
		s.checkOrderStatus(ctx)
		s.cancelOrder(ctx, true)
	}

	if deal != nil && !s.order.Outstanding() {
		s.executeDeal(ctx, deal)
	}

	if deal != nil && s.order.Outstanding() {
		s.checkOrderStatus(ctx)
	}

	if deal != nil && s.order.Outstanding() {
		s.validateRestingOrder(ctx, deal)
	}
	return false, nil
}

// checkDeal computes the candidate sell. The best ask anchors the
// exit: one tick better (lower) when no order rests, unchanged when
// one does. Profitability is measured against the position's average
// price, and the order is sized to the full held notional.
func (s *Seller) checkDeal() *Deal {
	if s.bot.SellableQuantity <= 0 {
		return nil
	}

	depth, err := s.depth()
	if err != nil {
		logs.Errorf("bot %d sell: unable to reach cached depth", s.cfg.BotID)
		return nil
	}
	bestAsk, ok := depth.BestAsk()
	if !ok {
		logs.Errorf("bot %d sell: depth has an empty ask side", s.cfg.BotID)
		return nil
	}

	sellPrice := bestAsk.Price
	if !s.order.Outstanding() {
		sellPrice = s.util.DetermineOrderPrice(enum.SideSell, bestAsk.Price)
	}

	rate := pricing.ProfitRate(s.bot.AveragePrice, sellPrice)
	if !pricing.IsProfitable(rate, s.bot.ProfitRate) {
		// undercutting too thin; retry resting at the raw ask
		sellPrice = bestAsk.Price
		rate = pricing.ProfitRate(s.bot.AveragePrice, sellPrice)
		if pricing.IsProfitable(rate, s.bot.ProfitRate) {
			logs.Infof("bot %d sell: exiting passively at ask %v", s.cfg.BotID, sellPrice)
		}
	}
	if !pricing.IsProfitable(rate, s.bot.ProfitRate) {
		logs.Debugf("bot %d sell: profit rate not enough: %v", s.cfg.BotID, rate)
		return nil
	}

	if s.bot.HeldNotional() < minTradeNotional {
		logs.Warnf("bot %d sell: held notional too low: %v", s.cfg.BotID, s.bot.HeldNotional())
		return nil
	}

	return &Deal{
		Price:        sellPrice,
		CounterPrice: s.bot.AveragePrice,
		Quantity:     s.bot.SellableQuantity,
		ProfitRate:   rate,
	}
}

// executeDeal places the limit sell.
func (s *Seller) executeDeal(ctx context.Context, deal *Deal) {
	price := s.util.FormatOrderPrice(deal.Price)
	quantity := s.util.QtyDown(deal.Quantity)

	orderID, raw, err := s.api.CreateLimitOrder(ctx, enum.SideSell, price, quantity)
	if err != nil || orderID == "" {
		logs.Errorf("bot %d sell: order failed: %v %s", s.cfg.BotID, err, raw)
		return
	}

	s.order = pendingOrder{OrderID: orderID, Price: deal.Price, Quantity: quantity, PlacedAt: s.now()}
	s.deal = deal
	obs.OrdersPlaced.WithLabelValues(string(enum.SideSell)).Inc()
	logs.Infof("bot %d sell: order placed at %s qty %v", s.cfg.BotID, price, quantity)
	s.touchLastOrder(ctx)
}

// validateRestingOrder cancels the resting sell when the fresh deal
// drifted outside the quantity band, the book moved against it, the
// front was taken, or it rests needlessly deep behind the second ask.
func (s *Seller) validateRestingOrder(ctx context.Context, newDeal *Deal) {
	if newDeal.Quantity < s.order.Quantity*qtyLowerBand ||
		newDeal.Quantity > s.order.Quantity*qtyUpperBand {
		logs.Infof("bot %d sell: quantity changed, cancelling order", s.cfg.BotID)
		s.cancelOrder(ctx, true)
		s.deal = nil
		return
	}

	depth, err := s.depth()
	if err != nil {
		return
	}
	bestAsk, ok := depth.BestAsk()
	if !ok {
		return
	}

	if bestAsk.Price > s.order.Price {
		logs.Warnf("bot %d sell: order book may be outdated, exchange %s ticker %s",
			s.cfg.BotID, s.cfg.Exchange, s.cfg.Ticker)
		return
	}

	if bestAsk.Price != s.order.Price {
		logs.Infof("bot %d sell: order is not the best (current %v, order %v), cancelling",
			s.cfg.BotID, bestAsk.Price, s.order.Price)
		s.cancelOrder(ctx, true)
		s.deal = nil
		return
	}

	secondAsk, ok := depth.SecondAsk()
	if !ok {
		return
	}
	behind := s.util.DetermineOrderPrice(enum.SideSell, secondAsk.Price)
	if bestAsk.Price != behind {
		logs.Infof("bot %d sell: order is best but far from the level behind, cancelling", s.cfg.BotID)
		s.cancelOrder(ctx, true)
		s.deal = nil
	}
}

// correctUnrecordedBuys compares the exchange-reported held balance
// against the tracked sellable quantity at most once per 15 seconds.
// The exchange holding less clamps the position down; holding more by
// a meaningful value corrects the quantity up without touching the
// average price, a best-effort repair for a buy fill that was never
// recorded.
func (s *Seller) correctUnrecordedBuys(ctx context.Context) {
	if s.now().Sub(s.lastCorrection) < correctionCheckInterval {
		return
	}
	s.lastCorrection = s.now()

	balances, err := s.balances()
	if err != nil {
		return
	}
	held := balances[s.bot.Asset()].Total
	diff := held - s.bot.SellableQuantity

	if diff < 0 {
		average := s.bot.AveragePrice
		quantity := held
		if quantity <= 0 {
			average, quantity = 0, 0
		}
		logs.Warnf("bot %d sell: exchange holds %v but tracked %v, clamping position",
			s.cfg.BotID, held, s.bot.SellableQuantity)
		if err := s.store.OverridePosition(ctx, s.cfg.BotID, s.bot.Version, average, quantity); err != nil {
			logs.Errorf("bot %d sell: clamp position: %v", s.cfg.BotID, err)
			return
		}
		s.bot.AveragePrice, s.bot.SellableQuantity = average, quantity
		s.bot.Version++
		return
	}
	if diff == 0 {
		return
	}

	referencePrice := s.bot.AveragePrice
	if referencePrice == 0 {
		depth, err := s.depth()
		if err != nil {
			return
		}
		bestBid, ok := depth.BestBid()
		if !ok {
			return
		}
		referencePrice = bestBid.Price
	}
	if diff*referencePrice < minTradeNotional {
		return // dust from fees or rounding, not a missed fill
	}

	logs.Warnf("bot %d sell: unrecorded buy detected, correcting quantity %v -> %v (average kept)",
		s.cfg.BotID, s.bot.SellableQuantity, held)
	if err := s.store.OverridePosition(ctx, s.cfg.BotID, s.bot.Version, s.bot.AveragePrice, held); err != nil {
		logs.Errorf("bot %d sell: correct position: %v", s.cfg.BotID, err)
		return
	}
	s.bot.SellableQuantity = held
	s.bot.Version++
}
