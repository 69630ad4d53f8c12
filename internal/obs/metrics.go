// Package obs exposes the bot's Prometheus metrics, served at /metrics
// by cmd/spread.
//
//   - spread_feed_messages_dropped_total{reason} – feed messages discarded
//     (malformed payload, unmatched topic); feeds book staleness alerting
//   - spread_feed_reconnects_total              – depth feed reconnects
//   - spread_orders_placed_total{side}          – limit orders placed
//   - spread_orders_cancelled_total{side}       – cancels sent
//   - spread_fills_merged_total{side}           – fills merged into position
//   - spread_iteration_failures_total{side}     – recovered loop failures
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_feed_messages_dropped_total",
			Help: "Feed messages discarded before reaching the book",
		},
		[]string{"reason"},
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spread_feed_reconnects_total",
			Help: "Depth feed reconnect attempts",
		},
	)

	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_orders_placed_total",
			Help: "Limit orders placed",
		},
		[]string{"side"},
	)

	OrdersCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_orders_cancelled_total",
			Help: "Order cancels sent",
		},
		[]string{"side"},
	)

	FillsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_fills_merged_total",
			Help: "Fills merged into the position and ledger",
		},
		[]string{"side"},
	)

	IterationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_iteration_failures_total",
			Help: "Worker iterations aborted by a recovered failure",
		},
		[]string{"side"},
	)
)
