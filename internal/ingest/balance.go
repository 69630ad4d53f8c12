package ingest

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/cache"
	"main/internal/exchange"
)

const (
	defaultBalanceInterval = 500 * time.Millisecond
	balanceErrorDelay      = 3 * time.Second
)

// BalanceSource is the venue endpoint the balance worker polls.
type BalanceSource interface {
	GetAccountBalance(ctx context.Context) (exchange.Balances, error)
}

// BalanceWorker polls the account balances and publishes each result
// to the cache. Fetch failures back off briefly and never stop the
// loop.
type BalanceWorker struct {
	exchange string
	account  string
	cache    *cache.Cache
	source   BalanceSource
	interval time.Duration
}

func NewBalanceWorker(exchangeName, account string, c *cache.Cache, source BalanceSource) *BalanceWorker {
	return &BalanceWorker{
		exchange: exchangeName,
		account:  account,
		cache:    c,
		source:   source,
		interval: defaultBalanceInterval,
	}
}

func (w *BalanceWorker) Run(ctx context.Context) error {
	logs.Infof("balance %s %s: starting", w.exchange, w.account)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := w.poll(ctx); err != nil {
			logs.Warnf("balance %s %s: poll: %v", w.exchange, w.account, err)
			wait(ctx, balanceErrorDelay)
			continue
		}
		wait(ctx, w.interval)
	}
}

func (w *BalanceWorker) poll(ctx context.Context) error {
	balances, err := w.source.GetAccountBalance(ctx)
	if err != nil {
		return err
	}
	w.cache.SetBalances(w.exchange, w.account, balances)
	return nil
}
