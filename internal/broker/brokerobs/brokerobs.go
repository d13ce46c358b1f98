package brokerobs

import (
	"context"

	"llm-paper-trader/internal/interfaces"
	"llm-paper-trader/internal/logger"
	"llm-paper-trader/internal/trace"
	"llm-paper-trader/internal/types"
)

// observableBrokerage wraps a Brokerage with observability (logging & tracing)
type observableBrokerage struct {
	brokerage interfaces.Brokerage
}

var _ interfaces.Brokerage = (*observableBrokerage)(nil)

// Wrap wraps a brokerage with observability middleware
func Wrap(brokerage interfaces.Brokerage) interfaces.Brokerage {
	return &observableBrokerage{
		brokerage: brokerage,
	}
}

func (ob *observableBrokerage) Account(ctx context.Context) (types.AccountState, error) {
	ctx, span := trace.StartSpan(ctx, "brokerage.Account")
	defer span.End()

	logger.Debug(ctx, "Fetching account state")

	acct, err := ob.brokerage.Account(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch account state", err)
		return types.AccountState{}, err
	}

	logger.Debug(ctx, "Account state fetched",
		"cash", acct.Cash.String(),
		"buying_power", acct.BuyingPower.String(),
		"positions", len(acct.Positions),
	)
	return acct, nil
}

func (ob *observableBrokerage) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderStatus, error) {
	ctx, span := trace.StartSpan(ctx, "brokerage.SubmitOrder")
	defer span.End()

	logger.Info(ctx, "Submitting order",
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Qty,
		"client_order_id", req.ClientOrderID,
	)

	st, err := ob.brokerage.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to submit order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"qty", req.Qty,
		)
		return types.OrderStatus{}, err
	}

	logger.Info(ctx, "Order submitted",
		"symbol", req.Symbol,
		"order_id", st.OrderID,
		"status", st.Status,
	)
	return st, nil
}

func (ob *observableBrokerage) OrderByClientID(ctx context.Context, clientOrderID string) (types.OrderStatus, error) {
	ctx, span := trace.StartSpan(ctx, "brokerage.OrderByClientID")
	defer span.End()

	st, err := ob.brokerage.OrderByClientID(ctx, clientOrderID)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to query order", err, "client_order_id", clientOrderID)
		return types.OrderStatus{}, err
	}

	logger.Debug(ctx, "Order status fetched",
		"client_order_id", clientOrderID,
		"order_id", st.OrderID,
		"status", st.Status,
	)
	return st, nil
}
