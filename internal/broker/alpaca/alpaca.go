package alpaca

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/types"
)

const defaultBaseURL = "https://paper-api.alpaca.markets"

// APIError is a response the brokerage actively returned, as opposed to a
// transport failure. 4xx means the request itself was refused.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca api error (http %d): %s", e.Status, e.Message)
}

// Rejected reports whether the brokerage refused the request outright.
func (e *APIError) Rejected() bool { return e.Status >= 400 && e.Status < 500 }

type Params struct {
	Mode      string // DRY_RUN or LIVE
	APIKey    string
	APISecret string
	BaseURL   string // defaults to the paper endpoint
}

// Client talks to the Alpaca paper trading REST API. In DRY_RUN mode orders
// are simulated in memory and fill instantly; account and position queries
// still hit the API so the risk guard sees real paper-account state.
type Client struct {
	p    Params
	http *resty.Client

	mu        sync.Mutex
	simOrders map[string]types.OrderStatus // keyed by client order id
}

var _ interfaces.Brokerage = (*Client)(nil)

func NewClient(p Params) *Client {
	base := p.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	httpc := resty.New().
		SetBaseURL(base).
		SetTimeout(15 * time.Second).
		SetHeader("APCA-API-KEY-ID", p.APIKey).
		SetHeader("APCA-API-SECRET-KEY", p.APISecret)

	return &Client{
		p:         p,
		http:      httpc,
		simOrders: make(map[string]types.OrderStatus),
	}
}

type accountResponse struct {
	Cash        string `json:"cash"`
	BuyingPower string `json:"buying_power"`
}

type positionResponse struct {
	Symbol string `json:"symbol"`
	Qty    string `json:"qty"`
}

type orderResponse struct {
	ID             string `json:"id"`
	ClientOrderID  string `json:"client_order_id"`
	Status         string `json:"status"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
	SubmittedAt    string `json:"submitted_at"`
	Message        string `json:"message"`
}

func (c *Client) Account(ctx context.Context) (types.AccountState, error) {
	var acct accountResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&acct).
		Get("/v2/account")
	if err != nil {
		return types.AccountState{}, fmt.Errorf("fetch account: %w", err)
	}
	if resp.IsError() {
		return types.AccountState{}, &APIError{Status: resp.StatusCode(), Message: resp.String()}
	}

	cash, err := decimal.NewFromString(acct.Cash)
	if err != nil {
		return types.AccountState{}, fmt.Errorf("parse account cash %q: %w", acct.Cash, err)
	}
	bp, err := decimal.NewFromString(acct.BuyingPower)
	if err != nil {
		return types.AccountState{}, fmt.Errorf("parse buying power %q: %w", acct.BuyingPower, err)
	}

	var positions []positionResponse
	resp, err = c.http.R().
		SetContext(ctx).
		SetResult(&positions).
		Get("/v2/positions")
	if err != nil {
		return types.AccountState{}, fmt.Errorf("fetch positions: %w", err)
	}
	if resp.IsError() {
		return types.AccountState{}, &APIError{Status: resp.StatusCode(), Message: resp.String()}
	}

	held := make(map[types.Symbol]int64, len(positions))
	for _, p := range positions {
		qty, err := strconv.ParseInt(p.Qty, 10, 64)
		if err != nil {
			return types.AccountState{}, fmt.Errorf("parse position qty %q for %s: %w", p.Qty, p.Symbol, err)
		}
		held[types.Symbol(p.Symbol)] = qty
	}

	return types.AccountState{Cash: cash, BuyingPower: bp, Positions: held}, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderStatus, error) {
	if c.p.Mode == "DRY_RUN" {
		return c.simulateOrder(req), nil
	}

	body := map[string]string{
		"symbol":          string(req.Symbol),
		"qty":             strconv.FormatInt(req.Qty, 10),
		"side":            sideOf(req.Side),
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": req.ClientOrderID,
	}

	var order orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&order).
		SetError(&order).
		Post("/v2/orders")
	if err != nil {
		return types.OrderStatus{}, fmt.Errorf("submit order: %w", err)
	}
	if resp.IsError() {
		msg := order.Message
		if msg == "" {
			msg = resp.String()
		}
		return types.OrderStatus{}, &APIError{Status: resp.StatusCode(), Message: msg}
	}

	return toStatus(order)
}

func (c *Client) OrderByClientID(ctx context.Context, clientOrderID string) (types.OrderStatus, error) {
	if c.p.Mode == "DRY_RUN" {
		c.mu.Lock()
		st, ok := c.simOrders[clientOrderID]
		c.mu.Unlock()
		if !ok {
			return types.OrderStatus{}, &APIError{Status: 404, Message: "order not found"}
		}
		return st, nil
	}

	var order orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("client_order_id", clientOrderID).
		SetResult(&order).
		SetError(&order).
		Get("/v2/orders:by_client_order_id")
	if err != nil {
		return types.OrderStatus{}, fmt.Errorf("query order: %w", err)
	}
	if resp.IsError() {
		msg := order.Message
		if msg == "" {
			msg = resp.String()
		}
		return types.OrderStatus{}, &APIError{Status: resp.StatusCode(), Message: msg}
	}

	return toStatus(order)
}

// simulateOrder fills the order instantly at a synthetic price so dry runs
// exercise the full executor path without touching real paper orders.
func (c *Client) simulateOrder(req types.OrderRequest) types.OrderStatus {
	st := types.OrderStatus{
		OrderID:       "SIM-" + uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		Status:        types.StatusFilled,
		FilledQty:     req.Qty,
		SubmittedAt:   time.Now().UTC(),
	}
	c.mu.Lock()
	c.simOrders[req.ClientOrderID] = st
	c.mu.Unlock()
	return st
}

func sideOf(a types.Action) string {
	if a == types.Sell {
		return "sell"
	}
	return "buy"
}

func toStatus(o orderResponse) (types.OrderStatus, error) {
	st := types.OrderStatus{
		OrderID:       o.ID,
		ClientOrderID: o.ClientOrderID,
		Status:        o.Status,
	}
	if o.FilledQty != "" {
		qty, err := strconv.ParseInt(o.FilledQty, 10, 64)
		if err != nil {
			return types.OrderStatus{}, fmt.Errorf("parse filled qty %q: %w", o.FilledQty, err)
		}
		st.FilledQty = qty
	}
	if o.FilledAvgPrice != "" {
		price, err := decimal.NewFromString(o.FilledAvgPrice)
		if err != nil {
			return types.OrderStatus{}, fmt.Errorf("parse filled avg price %q: %w", o.FilledAvgPrice, err)
		}
		st.FilledAvgPrice = price
	}
	if o.SubmittedAt != "" {
		ts, err := time.Parse(time.RFC3339, o.SubmittedAt)
		if err == nil {
			st.SubmittedAt = ts
		}
	}
	return st, nil
}
