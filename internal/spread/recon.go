package spread

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/obs"
)

// previousDealCheckInterval spaces out fill-status polling for
// cancelled-but-unconfirmed orders.
const previousDealCheckInterval = 5 * time.Second

// previousDeals holds deals whose orders were cancelled before their
// fill status was confirmed. A cancel and a fill can race at the
// exchange; parking the deal here and polling later is what keeps a
// late fill from being lost.
type previousDeals struct {
	deals     map[string]Deal
	lastCheck time.Time
}

func newPreviousDeals() *previousDeals {
	return &previousDeals{deals: make(map[string]Deal)}
}

func (p *previousDeals) Add(orderID string, deal Deal) {
	if orderID == "" {
		return
	}
	p.deals[orderID] = deal
}

func (p *previousDeals) Len() int {
	return len(p.deals)
}

// resolvePreviousDeals polls fill status for every parked order id.
// Zero filled quantity drops the entry with no side effect; a nonzero
// fill merges into the position and the ledger exactly like a live
// fill, then drops the entry. Runs at most once per 5 seconds.
func (w *worker) resolvePreviousDeals(ctx context.Context) {
	if len(w.pending.deals) == 0 {
		return
	}
	if w.now().Sub(w.pending.lastCheck) < previousDealCheckInterval {
		return
	}

	for orderID, deal := range w.pending.deals {
		status, err := w.api.GetOrderStatus(ctx, orderID)
		if err != nil {
			logs.Warnf("bot %d %s: previous deal %s status: %v", w.cfg.BotID, w.side, orderID, err)
			continue
		}

		if status.FilledQuantity == 0 {
			delete(w.pending.deals, orderID)
			w.pending.lastCheck = w.now()
			continue
		}

		logs.Infof("bot %d %s: cancelled order %s actually filled %v/%v",
			w.cfg.BotID, w.side, orderID, status.FilledQuantity, deal.Quantity)
		if err := w.mergeFill(ctx, status.FilledPrice, status.FilledQuantity); err != nil {
			logs.Errorf("bot %d %s: merge late fill %s: %v", w.cfg.BotID, w.side, orderID, err)
			continue
		}
		obs.FillsMerged.WithLabelValues(string(w.side)).Inc()

		delete(w.pending.deals, orderID)
		w.pending.lastCheck = w.now()
		sleep(ctx, 500*time.Millisecond)
	}
}
