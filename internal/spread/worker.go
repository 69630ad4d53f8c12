package spread

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/book"
	"main/internal/cache"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/pricing"
	"main/pkg/exception"
)

const (
	// minTradeNotional is the exchange-wide floor in quote units below
	// which an order is not worth placing.
	minTradeNotional = 6.0

	// qtyLowerBand/qtyUpperBand bound how far a fresh candidate
	// quantity may drift from the resting order before it is cancelled.
	qtyLowerBand = 0.95
	qtyUpperBand = 1.20

	defaultInterval    = 500 * time.Millisecond
	defaultSettleDelay = 5 * time.Second
	failureDelay       = 5 * time.Second

	lastOrderTouchTTL = 3 * time.Minute
)

// Store is the persistence surface the decision loops need. The fill
// merge and the ledger append commit atomically behind it.
type Store interface {
	Bot(ctx context.Context, id uint64) (model.SpreadBot, error)
	ApplyBuyFill(ctx context.Context, botID uint64, fillPrice, fillQuantity, fee float64) (model.SpreadBot, error)
	ApplySellFill(ctx context.Context, botID uint64, fillPrice, fillQuantity, fee float64) (model.SpreadBot, error)
	OverridePosition(ctx context.Context, botID, readVersion uint64, averagePrice, sellableQuantity float64) error
	TouchLastOrder(ctx context.Context, botID uint64, side enum.Side, at time.Time) error
}

// Config wires one decision worker to its bot.
type Config struct {
	BotID    uint64
	Exchange string
	Ticker   string
	Account  string
	Fees     exchange.FeeSchedule

	// Interval is the per-iteration sleep; SettleDelay runs once at
	// worker start before the first iteration.
	Interval    time.Duration
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = defaultSettleDelay
	}
	if c.Fees == nil {
		c.Fees = exchange.DefaultFees()
	}
	return c
}

// worker holds the state shared by the buy and sell loops.
type worker struct {
	cfg   Config
	side  enum.Side
	store Store
	api   exchange.API
	cache *cache.Cache
	util  pricing.Utility

	bot     model.SpreadBot
	order   pendingOrder
	deal    *Deal
	pending *previousDeals

	now func() time.Time
}

func newWorker(cfg Config, side enum.Side, store Store, api exchange.API, c *cache.Cache) *worker {
	return &worker{
		cfg:     cfg.withDefaults(),
		side:    side,
		store:   store,
		api:     api,
		cache:   c,
		pending: newPreviousDeals(),
		now:     time.Now,
	}
}

// setup resolves the instrument precisions, mirroring the per-worker
// product lookup at startup.
func (w *worker) setup(ctx context.Context) error {
	details, err := w.api.GetProductDetails(ctx)
	if err != nil {
		return err
	}
	w.util = pricing.New(details.PricePrecision, details.QuantityPrecision)
	logs.Infof("bot %d %s: price precision %v, qty precision %v",
		w.cfg.BotID, w.side, details.PricePrecision, details.QuantityPrecision)
	return nil
}

// refresh reloads the bot row so configuration edits and the other
// side's fills are visible this iteration.
func (w *worker) refresh(ctx context.Context) error {
	bot, err := w.store.Bot(ctx, w.cfg.BotID)
	if err != nil {
		return err
	}
	w.bot = bot
	return nil
}

func (w *worker) depth() (book.Depth, error) {
	d, ok := w.cache.Depth(w.cfg.Ticker, w.cfg.Exchange)
	if !ok || (len(d.Bids) == 0 && len(d.Asks) == 0) {
		return book.Depth{}, exception.ErrSpreadNoDepth
	}
	return d, nil
}

func (w *worker) balances() (exchange.Balances, error) {
	b, ok := w.cache.Balances(w.cfg.Exchange, w.cfg.Account)
	if !ok || len(b) == 0 {
		return nil, exception.ErrSpreadNoBalances
	}
	return b, nil
}

// fee computes the taker fee for a fill at the configured venue rate.
func (w *worker) fee(price, quantity float64) float64 {
	rate, err := w.cfg.Fees.Rate(w.cfg.Exchange)
	if err != nil {
		logs.Warnf("bot %d %s: %v", w.cfg.BotID, w.side, err)
		return 0
	}
	return price * quantity * rate
}

// mergeFill folds a confirmed fill into the shared position and the
// ledger, atomically with respect to the cleared order belief.
func (w *worker) mergeFill(ctx context.Context, fillPrice, fillQuantity float64) error {
	fee := w.fee(fillPrice, fillQuantity)
	var (
		bot model.SpreadBot
		err error
	)
	if w.side == enum.SideSell {
		bot, err = w.store.ApplySellFill(ctx, w.cfg.BotID, fillPrice, fillQuantity, fee)
	} else {
		bot, err = w.store.ApplyBuyFill(ctx, w.cfg.BotID, fillPrice, fillQuantity, fee)
	}
	if err != nil {
		return err
	}
	w.bot = bot
	return nil
}

// touchLastOrder records the order-placement timestamp at most once
// per three minutes; it only feeds the bot overview display.
func (w *worker) touchLastOrder(ctx context.Context) {
	key := "last_" + string(w.side) + "_order_placed_" + w.cfg.Ticker + "_" + w.cfg.Exchange
	if !w.cache.Once(key, lastOrderTouchTTL) {
		return
	}
	if err := w.store.TouchLastOrder(ctx, w.cfg.BotID, w.side, w.now()); err != nil {
		logs.Warnf("bot %d %s: touch last order: %v", w.cfg.BotID, w.side, err)
	}
}

// cancelOrder cancels the outstanding order. With record set the
// current deal is parked in the previous-deal set first, so a fill
// racing the cancel is still reconciled later.
func (w *worker) cancelOrder(ctx context.Context, record bool) {
	if !w.order.Outstanding() {
		return
	}
	if record && w.deal != nil {
		w.pending.Add(w.order.OrderID, *w.deal)
	}
	if err := w.api.CancelOrder(ctx, w.order.OrderID); err != nil {
		logs.Warnf("bot %d %s: cancel order %s: %v", w.cfg.BotID, w.side, w.order.OrderID, err)
	}
	obs.OrdersCancelled.WithLabelValues(string(w.side)).Inc()
	logs.Infof("bot %d %s: cancelled order %s", w.cfg.BotID, w.side, w.order.OrderID)
	w.order = pendingOrder{}
}

// checkOrderStatus polls the outstanding order once. Any nonzero
// filled quantity clears the order belief and merges the fill into the
// position and ledger in one step.
func (w *worker) checkOrderStatus(ctx context.Context) {
	if !w.order.Outstanding() {
		return
	}
	status, err := w.api.GetOrderStatus(ctx, w.order.OrderID)
	if err != nil {
		logs.Warnf("bot %d %s: order status %s: %v", w.cfg.BotID, w.side, w.order.OrderID, err)
		return
	}
	if status.FilledQuantity == 0 {
		return
	}

	w.cancelOrder(ctx, false)
	logs.Infof("bot %d %s: order filled qty %v/%v",
		w.cfg.BotID, w.side, status.FilledQuantity, w.orderQuantity())
	if err := w.mergeFill(ctx, status.FilledPrice, status.FilledQuantity); err != nil {
		logs.Errorf("bot %d %s: merge fill: %v", w.cfg.BotID, w.side, err)
		return
	}
	obs.FillsMerged.WithLabelValues(string(w.side)).Inc()
	w.deal = nil
}

func (w *worker) orderQuantity() float64 {
	if w.deal != nil {
		return w.deal.Quantity
	}
	return w.order.Quantity
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
