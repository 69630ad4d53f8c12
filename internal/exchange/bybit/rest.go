package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/exchange"
	"main/internal/model/enum"
	"main/pkg/exception"
)

var codec = sonic.ConfigFastest

// Config carries the venue credentials for one account.
type Config struct {
	Ticker     string
	Key        string
	Secret     string
	BaseURL    string
	RecvWindow int64
}

// API is the signed v5 REST client for one spot instrument. It
// implements the uniform exchange trading contract.
type API struct {
	cfg    Config
	symbol string
	client *http.Client
	now    func() time.Time
}

func New(cfg Config) *API {
	if cfg.BaseURL == "" {
		cfg.BaseURL = restBaseURL
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = 5000
	}
	return &API{
		cfg:    cfg,
		symbol: Symbol(cfg.Ticker),
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// sign computes the v5 request signature over
// timestamp + key + recvWindow + payload.
func (a *API) sign(timestamp, payload string) string {
	mac := hmac.New(sha256.New, []byte(a.cfg.Secret))
	_, _ = io.WriteString(mac, timestamp+a.cfg.Key+strconv.FormatInt(a.cfg.RecvWindow, 10)+payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *API) authorize(req *http.Request, payload string) {
	timestamp := strconv.FormatInt(a.now().UnixMilli(), 10)
	req.Header.Set("X-BAPI-API-KEY", a.cfg.Key)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.FormatInt(a.cfg.RecvWindow, 10))
	req.Header.Set("X-BAPI-SIGN", a.sign(timestamp, payload))
}

// get performs a signed GET and returns the result payload and the raw
// response body.
func (a *API) get(ctx context.Context, path string, query url.Values) ([]byte, string, error) {
	encoded := query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path+"?"+encoded, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "new request")
	}
	a.authorize(req, encoded)
	return a.do(req, path)
}

// post performs a signed POST with a JSON body and returns the result
// payload and the raw response body.
func (a *API) post(ctx context.Context, path string, body any) ([]byte, string, error) {
	bs, err := codec.Marshal(body)
	if err != nil {
		return nil, "", errors.Wrap(err, "marshal body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(bs))
	if err != nil {
		return nil, "", errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req, string(bs))
	return a.do(req, path)
}

func (a *API) do(req *http.Request, path string) ([]byte, string, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", errors.Wrapf(err, "%s %s", req.Method, path)
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "read response body")
	}
	raw := string(bs)

	if resp.StatusCode/100 != 2 {
		return nil, raw, errors.Errorf("%s %s: status %d: %s", req.Method, path, resp.StatusCode, raw)
	}

	var env envelope
	if err := codec.Unmarshal(bs, &env); err != nil {
		return nil, raw, errors.Wrap(exception.ErrOrderDecodeResponse, err.Error())
	}
	if env.RetCode != 0 {
		return nil, raw, errors.Wrapf(exception.ErrOrderResponseCode, "retCode %d: %s", env.RetCode, env.RetMsg)
	}
	return env.Result, raw, nil
}

type instrumentsResult struct {
	List []struct {
		Symbol      string `json:"symbol"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
		LotSizeFilter struct {
			BasePrecision string `json:"basePrecision"`
		} `json:"lotSizeFilter"`
	} `json:"list"`
}

func (a *API) GetProductDetails(ctx context.Context) (exchange.ProductDetails, error) {
	query := url.Values{}
	query.Set("category", categorySpot)
	query.Set("symbol", a.symbol)

	result, _, err := a.get(ctx, "/v5/market/instruments-info", query)
	if err != nil {
		return exchange.ProductDetails{}, err
	}

	var instruments instrumentsResult
	if err := codec.Unmarshal(result, &instruments); err != nil {
		return exchange.ProductDetails{}, errors.Wrap(exception.ErrOrderDecodeResponse, err.Error())
	}
	if len(instruments.List) == 0 {
		return exchange.ProductDetails{}, errors.Wrapf(exception.ErrInvalidArgument, "no instrument for %s", a.symbol)
	}

	entry := instruments.List[0]
	tick, err := strconv.ParseFloat(entry.PriceFilter.TickSize, 64)
	if err != nil {
		return exchange.ProductDetails{}, errors.Wrap(err, "parse tick size")
	}
	lot, err := strconv.ParseFloat(entry.LotSizeFilter.BasePrecision, 64)
	if err != nil {
		return exchange.ProductDetails{}, errors.Wrap(err, "parse base precision")
	}
	return exchange.ProductDetails{PricePrecision: tick, QuantityPrecision: lot}, nil
}

type createOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce"`
	OrderLinkID string `json:"orderLinkId"`
}

type createOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

func (a *API) CreateLimitOrder(ctx context.Context, side enum.Side, price string, quantity float64) (string, string, error) {
	venueSide := "Buy"
	if side == enum.SideSell {
		venueSide = "Sell"
	}

	result, raw, err := a.post(ctx, "/v5/order/create", createOrderRequest{
		Category:    categorySpot,
		Symbol:      a.symbol,
		Side:        venueSide,
		OrderType:   "Limit",
		Qty:         strconv.FormatFloat(quantity, 'f', -1, 64),
		Price:       price,
		TimeInForce: "GTC",
		OrderLinkID: uuid.NewString(),
	})
	if err != nil {
		return "", raw, err
	}

	var created createOrderResult
	if err := codec.Unmarshal(result, &created); err != nil {
		return "", raw, errors.Wrap(exception.ErrOrderDecodeResponse, err.Error())
	}
	if created.OrderID == "" {
		return "", raw, exception.ErrOrderEmptyResponseID
	}
	return created.OrderID, raw, nil
}

type cancelOrderRequest struct {
	Category string `json:"category"`
	Symbol   string `json:"symbol"`
	OrderID  string `json:"orderId,omitempty"`
}

func (a *API) CancelOrder(ctx context.Context, orderID string) error {
	_, _, err := a.post(ctx, "/v5/order/cancel", cancelOrderRequest{
		Category: categorySpot,
		Symbol:   a.symbol,
		OrderID:  orderID,
	})
	return err
}

func (a *API) CancelOpenOrders(ctx context.Context) error {
	_, _, err := a.post(ctx, "/v5/order/cancel-all", cancelOrderRequest{
		Category: categorySpot,
		Symbol:   a.symbol,
	})
	return err
}

type orderListResult struct {
	List []struct {
		OrderID     string `json:"orderId"`
		OrderStatus string `json:"orderStatus"`
		AvgPrice    string `json:"avgPrice"`
		CumExecQty  string `json:"cumExecQty"`
	} `json:"list"`
}

// GetOrderStatus resolves an order's fill state. Completed orders fall
// out of the realtime endpoint, so the history endpoint backs it up.
func (a *API) GetOrderStatus(ctx context.Context, orderID string) (exchange.OrderStatus, error) {
	query := url.Values{}
	query.Set("category", categorySpot)
	query.Set("symbol", a.symbol)
	query.Set("orderId", orderID)

	for _, path := range []string{"/v5/order/realtime", "/v5/order/history"} {
		result, raw, err := a.get(ctx, path, query)
		if err != nil {
			return exchange.OrderStatus{}, err
		}

		var orders orderListResult
		if err := codec.Unmarshal(result, &orders); err != nil {
			return exchange.OrderStatus{}, errors.Wrap(exception.ErrOrderDecodeResponse, err.Error())
		}
		if len(orders.List) == 0 {
			continue
		}

		entry := orders.List[0]
		return exchange.OrderStatus{
			FilledPrice:    parseFloat(entry.AvgPrice),
			FilledQuantity: parseFloat(entry.CumExecQty),
			Raw:            raw,
		}, nil
	}
	return exchange.OrderStatus{}, errors.Wrapf(exception.ErrOrderStatusIncomplete, "order %s", orderID)
}

type walletResult struct {
	List []struct {
		Coin []struct {
			Coin          string `json:"coin"`
			WalletBalance string `json:"walletBalance"`
			Locked        string `json:"locked"`
		} `json:"coin"`
	} `json:"list"`
}

func (a *API) GetAccountBalance(ctx context.Context) (exchange.Balances, error) {
	query := url.Values{}
	query.Set("accountType", "UNIFIED")

	result, _, err := a.get(ctx, "/v5/account/wallet-balance", query)
	if err != nil {
		return nil, err
	}

	var wallet walletResult
	if err := codec.Unmarshal(result, &wallet); err != nil {
		return nil, errors.Wrap(exception.ErrOrderDecodeResponse, err.Error())
	}

	balances := make(exchange.Balances)
	for _, account := range wallet.List {
		for _, coin := range account.Coin {
			total := parseFloat(coin.WalletBalance)
			frozen := parseFloat(coin.Locked)
			balances[coin.Coin] = exchange.Balance{
				Available: total - frozen,
				Frozen:    frozen,
				Total:     total,
			}
		}
	}
	return balances, nil
}

// parseFloat tolerates the empty strings the venue uses for unset
// numeric fields.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
