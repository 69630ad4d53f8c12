package exchange

import (
	"context"

	"main/internal/model/enum"
)

// ProductDetails carries an instrument's declared precisions, as tick
// sizes (0.01 means two decimals).
type ProductDetails struct {
	PricePrecision    float64
	QuantityPrecision float64
}

// Balance is one asset's account balance.
type Balance struct {
	Available float64 `json:"available"`
	Frozen    float64 `json:"frozen"`
	Total     float64 `json:"total"`
}

// Balances maps asset name to balance.
type Balances map[string]Balance

// OrderStatus is the exchange-reported fill state of an order.
type OrderStatus struct {
	FilledPrice    float64
	FilledQuantity float64
	Raw            string
}

// API is the uniform per-exchange trading contract. Implementations
// wrap the venue's REST surface including authentication and signing.
type API interface {
	GetProductDetails(ctx context.Context) (ProductDetails, error)

	// CreateLimitOrder returns the exchange order id, empty on reject.
	CreateLimitOrder(ctx context.Context, side enum.Side, price string, quantity float64) (orderID string, raw string, err error)

	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
	GetAccountBalance(ctx context.Context) (Balances, error)
	CancelOpenOrders(ctx context.Context) error
}
