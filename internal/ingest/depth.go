// Package ingest runs the background workers that keep the shared
// cache supplied with order book depth and account balances. The
// decision loops only ever read the cache, never the venue directly.
package ingest

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/book"
	"main/internal/cache"
	"main/internal/exchange/bybit"
	"main/internal/obs"
)

const feedRetryDelay = 3 * time.Second

// DepthFeed is the venue stream the depth worker consumes.
type DepthFeed interface {
	StartWebsocket(ctx context.Context) error
	SubscribeDepth(ctx context.Context, ticker string) error
	ObserveDepth(ctx context.Context, handler func(d bybit.DepthUpdate)) (unsubscribe func())
}

// DepthWorker maintains the order book from the snapshot+delta stream
// and publishes a fresh immutable depth snapshot to the cache after
// every applied update.
type DepthWorker struct {
	ticker   string
	exchange string
	cache    *cache.Cache
	feed     DepthFeed

	// book state is touched only from the observe goroutine
	book         *book.Book
	lastUpdateID int64
}

func NewDepthWorker(ticker, exchangeName string, c *cache.Cache, feed DepthFeed) *DepthWorker {
	return &DepthWorker{
		ticker:   ticker,
		exchange: exchangeName,
		cache:    c,
		feed:     feed,
		book:     book.New(),
	}
}

// Run connects, subscribes and streams until the context ends.
// Connection failures retry forever; the consumers tolerate a stale
// cache by abstaining.
func (w *DepthWorker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := w.stream(ctx); err != nil {
			logs.Errorf("depth %s %s: stream: %+v", w.exchange, w.ticker, err)
			obs.FeedReconnects.Inc()
			wait(ctx, feedRetryDelay)
		}
	}
}

func (w *DepthWorker) stream(ctx context.Context) error {
	if err := w.feed.StartWebsocket(ctx); err != nil {
		return err
	}
	if err := w.feed.SubscribeDepth(ctx, w.ticker); err != nil {
		return err
	}
	logs.Infof("depth %s %s: subscribed", w.exchange, w.ticker)

	unsubscribe := w.feed.ObserveDepth(ctx, w.handleUpdate)
	defer unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

// handleUpdate folds one stream message into the book and publishes
// the result. Deltas arriving before any snapshot, or out of order,
// are dropped.
func (w *DepthWorker) handleUpdate(d bybit.DepthUpdate) {
	switch {
	case d.IsSnapshot():
		w.book.ApplySnapshot(d.Data.BidLevels(), d.Data.AskLevels())
		w.lastUpdateID = d.Data.UpdateID
	case w.lastUpdateID == 0:
		obs.FeedDropped.WithLabelValues("no_snapshot").Inc()
		return
	case d.Data.UpdateID <= w.lastUpdateID:
		obs.FeedDropped.WithLabelValues("out_of_order").Inc()
		return
	default:
		w.book.ApplyDelta(d.Data.BidLevels(), d.Data.AskLevels())
		w.lastUpdateID = d.Data.UpdateID
	}

	w.cache.SetDepth(w.ticker, w.exchange, w.book.Depth())
}

// wait blocks for d unless the context ends first.
func wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
