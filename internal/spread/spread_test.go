package spread

import (
	"context"
	"errors"
	"fmt"
	"time"

	"main/internal/book"
	"main/internal/cache"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/model/enum"
)

type recordedFill struct {
	Side     enum.Side
	Price    float64
	Quantity float64
	Fee      float64
}

type recordedOverride struct {
	ReadVersion      uint64
	AveragePrice     float64
	SellableQuantity float64
}

type fakeStore struct {
	bot       model.SpreadBot
	botErr    error
	fills     []recordedFill
	overrides []recordedOverride
	touched   []enum.Side
}

func (s *fakeStore) Bot(_ context.Context, id uint64) (model.SpreadBot, error) {
	if s.botErr != nil {
		return model.SpreadBot{}, s.botErr
	}
	if id != s.bot.ID {
		return model.SpreadBot{}, errors.New("bot not found")
	}
	return s.bot, nil
}

func (s *fakeStore) ApplyBuyFill(_ context.Context, _ uint64, fillPrice, fillQuantity, fee float64) (model.SpreadBot, error) {
	s.fills = append(s.fills, recordedFill{enum.SideBuy, fillPrice, fillQuantity, fee})
	s.bot.AveragePrice, s.bot.SellableQuantity = model.MergeBuyFill(
		s.bot.AveragePrice, s.bot.SellableQuantity, fillPrice, fillQuantity)
	s.bot.Version++
	return s.bot, nil
}

func (s *fakeStore) ApplySellFill(_ context.Context, _ uint64, fillPrice, fillQuantity, fee float64) (model.SpreadBot, error) {
	s.fills = append(s.fills, recordedFill{enum.SideSell, fillPrice, fillQuantity, fee})
	s.bot.AveragePrice, s.bot.SellableQuantity = model.ReduceSellFill(
		s.bot.AveragePrice, s.bot.SellableQuantity, fillQuantity)
	s.bot.Version++
	return s.bot, nil
}

func (s *fakeStore) OverridePosition(_ context.Context, _ uint64, readVersion uint64, averagePrice, sellableQuantity float64) error {
	if readVersion != s.bot.Version {
		return errors.New("version conflict")
	}
	s.overrides = append(s.overrides, recordedOverride{readVersion, averagePrice, sellableQuantity})
	s.bot.AveragePrice = averagePrice
	s.bot.SellableQuantity = sellableQuantity
	s.bot.Version++
	return nil
}

func (s *fakeStore) TouchLastOrder(_ context.Context, _ uint64, side enum.Side, _ time.Time) error {
	s.touched = append(s.touched, side)
	return nil
}

type placedOrder struct {
	Side     enum.Side
	Price    string
	Quantity float64
}

type fakeAPI struct {
	details exchange.ProductDetails

	placed       []placedOrder
	cancelled    []string
	cancelledAll int
	statuses     map[string]exchange.OrderStatus
	statusErr    error
	statusCalls  int
	balances     exchange.Balances
	rejectOrders bool
	nextID       int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		details:  exchange.ProductDetails{PricePrecision: 0.01, QuantityPrecision: 0.1},
		statuses: make(map[string]exchange.OrderStatus),
	}
}

func (a *fakeAPI) GetProductDetails(context.Context) (exchange.ProductDetails, error) {
	return a.details, nil
}

func (a *fakeAPI) CreateLimitOrder(_ context.Context, side enum.Side, price string, quantity float64) (string, string, error) {
	if a.rejectOrders {
		return "", `{"code":30010}`, nil
	}
	a.nextID++
	a.placed = append(a.placed, placedOrder{side, price, quantity})
	return fmt.Sprintf("order-%d", a.nextID), "{}", nil
}

func (a *fakeAPI) CancelOrder(_ context.Context, orderID string) error {
	a.cancelled = append(a.cancelled, orderID)
	return nil
}

func (a *fakeAPI) GetOrderStatus(_ context.Context, orderID string) (exchange.OrderStatus, error) {
	a.statusCalls++
	if a.statusErr != nil {
		return exchange.OrderStatus{}, a.statusErr
	}
	return a.statuses[orderID], nil
}

func (a *fakeAPI) GetAccountBalance(context.Context) (exchange.Balances, error) {
	return a.balances, nil
}

func (a *fakeAPI) CancelOpenOrders(context.Context) error {
	a.cancelledAll++
	return nil
}

func testConfig() Config {
	return Config{
		BotID:       1,
		Exchange:    "Mexc",
		Ticker:      "SOL/USDT",
		Account:     "main",
		SettleDelay: 0,
	}
}

func seedDepth(c *cache.Cache, cfg Config, bids, asks []book.Level) {
	c.SetDepth(cfg.Ticker, cfg.Exchange, book.Depth{Bids: bids, Asks: asks})
}

func seedBalances(c *cache.Cache, cfg Config, balances exchange.Balances) {
	c.SetBalances(cfg.Exchange, cfg.Account, balances)
}
